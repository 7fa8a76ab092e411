// Package env holds the configuration shared by the binaries: defaults,
// overridden by environment variables, then by command line flags.
package env

import (
	"flag"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID salts the device ID so the raw machine ID isn't published.
const AppID = "cfboot"

// Config provides common options of the simulator and tools.
type Config struct {
	// LinkURL is where the device link is served or dialed.
	// e.g. tcp://localhost:5760, ws://localhost:5761/link, serial:///dev/ttyUSB0
	LinkURL string

	// MQTTBrokerURL specifies the MQTT broker events go through.
	// e.g. mqtt://host:port/topic-prefix. Empty disables events.
	MQTTBrokerURL string

	// DeviceID names the device in event topics.
	DeviceID string

	// FlashFile persists the simulated flash.
	FlashFile string

	// FlashTimeout bounds each wait on the flash controller. Zero waits
	// forever.
	FlashTimeout time.Duration

	// FlowControl holds the link instead of dropping bytes when the
	// receive queue is full.
	FlowControl bool
}

var defaultConfig = Config{
	LinkURL:       "tcp://localhost:5760",
	MQTTBrokerURL: "mqtt://localhost:1883/cfboot/",
	FlashFile:     "cfboot-flash.bin",
	FlashTimeout:  time.Second,
	FlowControl:   true,
}

func init() {
	if val := os.Getenv("CFBOOT_LINK_URL"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val, ok := os.LookupEnv("CFBOOT_MQTT_URL"); ok {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("CFBOOT_FLASH_FILE"); val != "" {
		defaultConfig.FlashFile = val
	}
	if val := os.Getenv("CFBOOT_DEVICE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Link URL.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable events.")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID, defaults to one derived from the machine ID.")
	flag.StringVar(&defaultConfig.FlashFile, "flash", defaultConfig.FlashFile, "Simulated flash image file.")
	flag.DurationVar(&defaultConfig.FlashTimeout, "flash-timeout", defaultConfig.FlashTimeout, "Flash controller wait timeout, 0 waits forever.")
	flag.BoolVar(&defaultConfig.FlowControl, "flow-control", defaultConfig.FlowControl, "Hold the link when the receive queue is full.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Device returns DeviceID, falling back to MachineID.
func (c *Config) Device() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	return MachineID()
}

// MachineID retrieves an ID identifying this machine for this application.
// The host name is used when the machine ID isn't available.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id
	}
	glog.Warningf("machine ID unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return AppID
}
