package main

import (
	"flag"
	"log"
	"sort"
	"strings"

	"github.com/robotalks/cfboot/pkg/env"
	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/events/mqtt"
)

func init() {
	env.SetupFlags()
}

func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(formatValue(fields[key]))
	}
	return b.String()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.Default()
	q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("+/"+mqtt.EventsTopic, mqtt.Handler(func(topic string, payload []byte) {
		ev, err := events.Decode(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s%s", topic, ev.Name,
			ev.Time.Format("15:04:05.000"), formatFields(ev.Fields))
	}))
	<-(chan struct{})(nil)
}
