package main

import (
	"flag"
	"log"
	"os"

	fx "github.com/robotalks/mojo.go/pkg/framework"
	"github.com/robotalks/mojo.go/pkg/status/mqtt"
)

var (
	mqttURL = mqtt.DefaultURL
	pattern = "+/+/status"
)

func init() {
	if val := os.Getenv("MOJO_STATUS_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&pattern, "topic", pattern, "Topic pattern relative to the URL prefix.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(pattern, mqtt.Handler(func(topic string, payload []byte) {
		event, err := mqtt.DecodeEvent(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Printf("[%s] %s", event.Type, event)
	}))

	if err := fx.NewRunner().HandleSignals().Go(fx.NamedRun("mqtt", q)).Wait(); err != nil {
		log.Fatalln(err)
	}
}
