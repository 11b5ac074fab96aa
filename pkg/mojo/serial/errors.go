package serial

import (
	"errors"
	"os"

	bugst "go.bug.st/serial"

	"github.com/robotalks/mojo.go/pkg/mojo"
)

func portErrorCode(err error) (bugst.PortErrorCode, bool) {
	var ptr *bugst.PortError
	if errors.As(err, &ptr) {
		return ptr.Code(), true
	}
	var val bugst.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}

// translateError maps errors from the serial library to mojo error kinds.
func translateError(name string, err error) error {
	e := &mojo.Error{Kind: mojo.KindIOFailure, Op: "open", Msg: "could not open " + name, Err: err}
	if errors.Is(err, os.ErrNotExist) {
		e.Kind = mojo.KindPortUnavailable
	} else if code, ok := portErrorCode(err); ok {
		switch code {
		case bugst.PortBusy:
			e.Kind, e.Msg = mojo.KindPortBusy, "port "+name+" is currently in use"
		case bugst.PortNotFound, bugst.PermissionDenied:
			e.Kind = mojo.KindPortUnavailable
		case bugst.InvalidSerialPort:
			e.Kind, e.Msg = mojo.KindNotASerialPort, "only serial ports can be used"
		}
	}
	return e
}
