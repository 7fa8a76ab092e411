package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigCopies(t *testing.T) {
	conf := NewConfig()
	conf.LinkURL = "ws://localhost:1/link"
	assert.NotEqual(t, conf.LinkURL, Default().LinkURL)
}

func TestDevice(t *testing.T) {
	conf := NewConfig()
	conf.DeviceID = "cf1"
	assert.Equal(t, "cf1", conf.Device())
	conf.DeviceID = ""
	assert.NotEmpty(t, conf.Device())
}
