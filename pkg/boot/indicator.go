package boot

import (
	"sync"

	"github.com/golang/glog"
)

// Indicator is the status LED.
type Indicator interface {
	Toggle()
}

// LogIndicator is an Indicator which only records and logs its state.
type LogIndicator struct {
	Name string

	lock    sync.Mutex
	on      bool
	toggles int
}

// Toggle implements Indicator.
func (l *LogIndicator) Toggle() {
	l.lock.Lock()
	l.on = !l.on
	l.toggles++
	on := l.on
	l.lock.Unlock()
	if glog.V(3) {
		glog.Infof("%s led on=%v", l.Name, on)
	}
}

// On reports the current state.
func (l *LogIndicator) On() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}

// Toggles returns the number of state changes so far.
func (l *LogIndicator) Toggles() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.toggles
}
