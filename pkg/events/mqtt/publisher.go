package mqtt

import (
	"context"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/cfboot/pkg/events"
)

// EventsTopic is the topic suffix events are published on, below the
// device ID.
const EventsTopic = "events"

// DefaultBacklog is the number of events buffered before dropping.
const DefaultBacklog = 64

// Poster publishes a payload to a topic.
type Poster interface {
	Pub(topic string, payload []byte) paho.Token
}

// Publisher implements events.Publisher. Publish only enqueues; Run
// encodes and posts, so a slow broker never stalls the bootloader loop.
type Publisher struct {
	Poster       Poster
	Topic        string
	WriteTimeout time.Duration

	eventCh chan events.Event
	dropped int64
}

// NewPublisher creates a Publisher posting to "<deviceID>/events".
func NewPublisher(poster Poster, deviceID string) *Publisher {
	return &Publisher{
		Poster:       poster,
		Topic:        deviceID + "/" + EventsTopic,
		WriteTimeout: time.Second,
		eventCh:      make(chan events.Event, DefaultBacklog),
	}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ev events.Event) {
	select {
	case p.eventCh <- ev:
	default:
		atomic.AddInt64(&p.dropped, 1)
		glog.V(2).Infof("event %s dropped, backlog full", ev.Name)
	}
}

// Dropped returns the number of events dropped for a full backlog.
func (p *Publisher) Dropped() int64 {
	return atomic.LoadInt64(&p.dropped)
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.eventCh:
			p.post(ev)
		}
	}
}

func (p *Publisher) post(ev events.Event) {
	data, err := events.Encode(ev)
	if err != nil {
		glog.Errorf("encode event %s: %v", ev.Name, err)
		return
	}
	token := p.Poster.Pub(p.Topic, data)
	if !token.WaitTimeout(p.WriteTimeout) {
		glog.Warningf("publish %s timeout", ev.Name)
		return
	}
	if err = token.Error(); err != nil {
		glog.Warningf("publish %s: %v", ev.Name, err)
	}
}
