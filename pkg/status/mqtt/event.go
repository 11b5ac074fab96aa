package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
)

// EventType is the type of a status event.
type EventType string

// Event types.
const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
)

// Event is a status update of an operation on a port.
type Event struct {
	Type     EventType
	Host     string
	Port     string
	Fraction float64
	Text     string
	Time     time.Time
}

// String formats the event for display.
func (e *Event) String() string {
	switch e.Type {
	case EventProgress:
		return fmt.Sprintf("%s %s: %.0f%%", e.Host, e.Port, e.Fraction*100)
	case EventSuccess:
		return fmt.Sprintf("%s %s: success", e.Host, e.Port)
	case EventError:
		return fmt.Sprintf("%s %s: error: %s", e.Host, e.Port, e.Text)
	}
	return fmt.Sprintf("%s %s: %q", e.Host, e.Port, e.Text)
}

// Encode serializes the event as a protobuf Struct.
func (e *Event) Encode() ([]byte, error) {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":     stringValue(string(e.Type)),
		"host":     stringValue(e.Host),
		"port":     stringValue(e.Port),
		"fraction": {Kind: &structpb.Value_NumberValue{NumberValue: e.Fraction}},
		"text":     stringValue(e.Text),
		"time":     stringValue(e.Time.UTC().Format(time.RFC3339Nano)),
	}}
	return proto.Marshal(s)
}

// DecodeEvent parses an encoded event.
func DecodeEvent(data []byte) (*Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	str := func(key string) string { return s.Fields[key].GetStringValue() }
	e := &Event{
		Type:     EventType(str("type")),
		Host:     str("host"),
		Port:     str("port"),
		Fraction: s.Fields["fraction"].GetNumberValue(),
		Text:     str("text"),
	}
	if e.Type == "" {
		return nil, fmt.Errorf("event type missing")
	}
	if ts := str("time"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid event time: %v", err)
		}
		e.Time = t
	}
	return e, nil
}

// Topic returns the status topic of a port on a host. Characters with
// special meaning in MQTT topics are replaced.
func Topic(host, port string) string {
	port = strings.Trim(strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(port), "_")
	return host + "/" + port + "/status"
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}
