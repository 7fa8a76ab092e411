// Package events carries bootloader activity to observers outside the
// device loop.
package events

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Event names.
const (
	BootMode       = "boot_mode"
	LoadRejected   = "load_rejected"
	SectorErased   = "sector_erased"
	PageProgrammed = "page_programmed"
	FlashWritten   = "flash_written"
	LinkStats      = "link_stats"
)

// Event is one observation. Field values are strings, bools or numbers.
type Event struct {
	Name   string
	Time   time.Time
	Fields map[string]interface{}
}

// New creates an Event stamped with the current time from key/value pairs.
func New(name string, kvs ...interface{}) Event {
	ev := Event{Name: name, Time: time.Now(), Fields: make(map[string]interface{}, len(kvs)/2)}
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			ev.Fields[key] = kvs[i+1]
		}
	}
	return ev
}

// Publisher receives events. Publish must not block the caller for long:
// it runs on the bootloader loop.
type Publisher interface {
	Publish(Event)
}

// PublishFunc is func type of Publisher.
type PublishFunc func(Event)

// Publish implements Publisher.
func (f PublishFunc) Publish(ev Event) {
	f(ev)
}

// Discard drops all events.
var Discard Publisher = PublishFunc(func(Event) {})

// Recorder keeps published events in memory.
type Recorder struct {
	events []Event
	lock   sync.Mutex
}

// Publish implements Publisher.
func (r *Recorder) Publish(ev Event) {
	r.lock.Lock()
	r.events = append(r.events, ev)
	r.lock.Unlock()
}

// Events returns recorded events.
func (r *Recorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the names of recorded events in order.
func (r *Recorder) Names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, len(r.events))
	for n, ev := range r.events {
		names[n] = ev.Name
	}
	return names
}

// Caster forwards events to all subscribed publishers.
type Caster struct {
	publishers []Publisher
}

// Subscribe adds a publisher.
func (c *Caster) Subscribe(p Publisher) {
	c.publishers = append(c.publishers, p)
}

// Publish implements Publisher.
func (c *Caster) Publish(ev Event) {
	for _, p := range c.publishers {
		p.Publish(ev)
	}
}

// Logger logs events at verbosity 1.
var Logger Publisher = PublishFunc(func(ev Event) {
	if glog.V(1) {
		glog.Infof("event %s %v", ev.Name, ev.Fields)
	}
})
