package mojo

import (
	"io/ioutil"
)

// Mode is the destination of an upload.
type Mode int

// Upload destinations.
const (
	// ModeVolatile configures the FPGA directly; lost on power cycle.
	ModeVolatile Mode = iota
	// ModeFlash writes the image to the persistent flash.
	ModeFlash
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeFlash {
		return "flash"
	}
	return "volatile"
}

// Request describes an upload.
type Request struct {
	Payload []byte
	Mode    Mode
	// Verify requests a readback pass, only honored with ModeFlash.
	Verify bool
}

// ShouldVerify indicates whether the readback pass applies.
func (r Request) ShouldVerify() bool {
	return r.Mode == ModeFlash && r.Verify
}

// LoadRequest reads the payload from a bin file.
func LoadRequest(path string, mode Mode, verify bool) (Request, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Request{}, newError(KindInvalidArgument, "load", "the bin file could not be opened", err)
	}
	return Request{Payload: data, Mode: mode, Verify: verify}, nil
}

func (r Request) clone() Request {
	payload := make([]byte, len(r.Payload))
	copy(payload, r.Payload)
	r.Payload = payload
	return r
}
