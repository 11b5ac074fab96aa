package mqtt

import (
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "mojo.go"

// HostID returns an application specific ID of this machine, falling back
// to the host name.
func HostID() string {
	if id, err := machineid.ProtectedID(appID); err == nil {
		return id[:12]
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}

// Reporter publishes progress and outcome of operations on one port.
// It implements mojo.ProgressSink and mojo.OutcomeSink.
type Reporter struct {
	Publisher Publisher
	Host      string
	Port      string
	QoS       byte
	Timeout   time.Duration

	now func() time.Time
}

// NewReporter creates a Reporter for port.
func NewReporter(pub Publisher, host, port string) *Reporter {
	return &Reporter{Publisher: pub, Host: host, Port: port, Timeout: time.Second, now: time.Now}
}

// ProgressChanged implements mojo.ProgressSink.
func (r *Reporter) ProgressChanged(fraction float64) {
	r.publish(&Event{Type: EventProgress, Fraction: fraction})
}

// StatusChanged implements mojo.ProgressSink.
func (r *Reporter) StatusChanged(text string) {
	r.publish(&Event{Type: EventStatus, Text: text})
}

// Succeeded implements mojo.OutcomeSink.
func (r *Reporter) Succeeded() {
	r.publish(&Event{Type: EventSuccess, Fraction: 1})
}

// Failed implements mojo.OutcomeSink.
func (r *Reporter) Failed(err error) {
	r.publish(&Event{Type: EventError, Text: err.Error()})
}

func (r *Reporter) publish(e *Event) {
	e.Host, e.Port = r.Host, r.Port
	if r.now != nil {
		e.Time = r.now()
	} else {
		e.Time = time.Now()
	}
	payload, err := e.Encode()
	if err != nil {
		glog.Errorf("encode %s event: %v", e.Type, err)
		return
	}
	token := r.Publisher.PubWith(Topic(r.Host, r.Port), payload, r.QoS, e.Type != EventProgress)
	if r.Timeout > 0 && !token.WaitTimeout(r.Timeout) {
		glog.Warningf("publish %s event: timeout", e.Type)
		return
	}
	if err := token.Error(); err != nil {
		glog.Warningf("publish %s event: %v", e.Type, err)
	}
}
