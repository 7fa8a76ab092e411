// Package transport opens the byte streams the link runs over: a serial
// port to real hardware, or TCP and websocket connections to a simulated
// device.
//
// Streams are selected by URL:
//
//	serial:///dev/ttyUSB0?baud=1000000
//	tcp://localhost:5760
//	ws://localhost:5761/link
package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
	"golang.org/x/net/websocket"
)

// DefaultBaud is the UART rate between the radio and the flight controller.
const DefaultBaud = 1000000

// ErrUnsupportedScheme indicates an unknown URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// SerialConfig creates the serial port configuration from a serial URL.
func SerialConfig(u *url.URL) (*serial.Config, error) {
	name := u.Path
	if name == "" {
		name = u.Opaque
	}
	if name == "" {
		return nil, fmt.Errorf("serial device missing in %q", u.String())
	}
	conf := &serial.Config{Name: name, Baud: DefaultBaud}
	if val := u.Query().Get("baud"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid baud %q", val)
		}
		conf.Baud = baud
	}
	if val := u.Query().Get("read-timeout"); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid read-timeout %q", val)
		}
		conf.ReadTimeout = timeout
	}
	return conf, nil
}

// Open connects to the stream at rawURL.
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid link URL")
	}
	switch u.Scheme {
	case "serial":
		conf, err := SerialConfig(u)
		if err != nil {
			return nil, err
		}
		port, err := serial.OpenPort(conf)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", conf.Name)
		}
		return port, nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		conn, err := websocket.Dial(u.String(), "", origin)
		if err != nil {
			return nil, err
		}
		conn.PayloadType = websocket.BinaryFrame
		return conn, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
}
