package sim

import (
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cfboot/pkg/events"
	"github.com/robotalks/cfboot/pkg/events/mqtt"
)

// BrokerTimeout bounds the wait for the MQTT broker at startup.
const BrokerTimeout = 5 * time.Second

// ConnectEvents subscribes an MQTT publisher to caster. Events are
// optional: with an empty URL or an unreachable broker it logs, leaves
// caster unchanged and returns nil. The returned publisher must be run and
// the closer closed on exit.
func ConnectEvents(caster *events.Caster, brokerURL, deviceID string, timeout time.Duration) (*mqtt.Publisher, io.Closer) {
	if brokerURL == "" {
		return nil, nil
	}
	q, err := mqtt.Dial(brokerURL, timeout)
	if err != nil {
		glog.Warningf("events disabled, MQTT broker %s: %v", brokerURL, err)
		return nil, nil
	}
	pub := mqtt.NewPublisher(q, deviceID)
	caster.Subscribe(pub)
	return pub, q
}
