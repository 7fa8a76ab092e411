package transport

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/cfboot/pkg/syslink"
)

func TestSerialConfig(t *testing.T) {
	u, err := url.Parse("serial:///dev/ttyUSB0?baud=115200&read-timeout=50ms")
	require.NoError(t, err)
	conf, err := SerialConfig(u)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", conf.Name)
	assert.Equal(t, 115200, conf.Baud)
	assert.Equal(t, 50*time.Millisecond, conf.ReadTimeout)

	u, err = url.Parse("serial:///dev/ttyS1")
	require.NoError(t, err)
	conf, err = SerialConfig(u)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaud, conf.Baud)

	u, err = url.Parse("serial:///dev/ttyS1?baud=fast")
	require.NoError(t, err)
	_, err = SerialConfig(u)
	assert.Error(t, err)

	u, err = url.Parse("serial://")
	require.NoError(t, err)
	_, err = SerialConfig(u)
	assert.Error(t, err)
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := Open("udp://localhost:1")
	assert.Equal(t, ErrUnsupportedScheme, errors.Cause(err))
	_, err = Listen("udp://localhost:1")
	assert.Equal(t, ErrUnsupportedScheme, errors.Cause(err))
}

func roundTrip(t *testing.T, listenURL string) {
	ln, err := Listen(listenURL)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan io.ReadWriteCloser, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Open(ln.Addr())
	require.NoError(t, err)
	defer client.Close()

	var server io.ReadWriteCloser
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept timeout")
	}
	defer server.Close()

	frame := []byte{syslink.Sync1, syslink.Sync2, 0x00, 0x03, 0xff, 0xff, 0x10, 0x22, 0x63}
	_, err = client.Write(frame)
	require.NoError(t, err)
	buf := make([]byte, len(frame))
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, frame, buf)

	_, err = server.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	buf = buf[:2]
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, buf)
}

func TestTCPRoundTrip(t *testing.T) {
	roundTrip(t, "tcp://127.0.0.1:0")
}

func TestWebsocketRoundTrip(t *testing.T) {
	roundTrip(t, "ws://127.0.0.1:0/link")
}

func TestListenerClose(t *testing.T) {
	ln, err := Listen("ws://127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		errCh <- err
	}()
	require.NoError(t, ln.Close())
	select {
	case err := <-errCh:
		assert.Equal(t, io.EOF, err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept not released")
	}
}

func TestPortListenerReopens(t *testing.T) {
	var opened []io.ReadWriteCloser
	ln := &portListener{
		open: func() (io.ReadWriteCloser, error) {
			_, port := net.Pipe()
			opened = append(opened, port)
			return port, nil
		},
		addr:   "serial:///dev/ttyFAKE",
		doneCh: make(chan struct{}),
	}
	defer ln.Close()

	first, err := ln.Accept()
	require.NoError(t, err)
	require.Len(t, opened, 1)

	accepted := make(chan io.ReadWriteCloser, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	select {
	case <-accepted:
		t.Fatal("port reopened while in use")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Close())
	select {
	case second := <-accepted:
		require.NotNil(t, second)
		assert.Len(t, opened, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("port not reopened")
	}
}

func TestPortListenerClose(t *testing.T) {
	ln := &portListener{
		open: func() (io.ReadWriteCloser, error) {
			_, port := net.Pipe()
			return port, nil
		},
		addr:   "serial:///dev/ttyFAKE",
		doneCh: make(chan struct{}),
	}
	_, err := ln.Accept()
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		errCh <- err
	}()
	require.NoError(t, ln.Close())
	select {
	case err := <-errCh:
		assert.Equal(t, io.EOF, err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept not released")
	}
	_, err = ln.Accept()
	assert.Equal(t, io.EOF, err)
}

func TestListenSerialBadURL(t *testing.T) {
	_, err := Listen("serial://")
	assert.Error(t, err)
}

func TestPump(t *testing.T) {
	q := syslink.NewQueue()
	data := []byte{1, 2, 3, 4, 5}
	p := &Pump{Reader: ioutil.NopCloser(bytes.NewReader(data)), Queue: q}
	err := p.Run(context.Background())
	assert.Equal(t, io.EOF, err)
	require.Equal(t, len(data), q.Len())
	for _, want := range data {
		b, ok := q.TryReadByte()
		require.True(t, ok)
		assert.Equal(t, want, b)
	}
}

func TestPumpOverflow(t *testing.T) {
	q := syslink.NewQueue()
	data := make([]byte, syslink.QueueCapacity+10)
	p := &Pump{Reader: ioutil.NopCloser(bytes.NewReader(data)), Queue: q}
	p.Run(context.Background())
	assert.Equal(t, uint64(10), q.Overflows())
}

func TestPumpFlowControl(t *testing.T) {
	q := syslink.NewQueue()
	data := make([]byte, syslink.QueueCapacity*3)
	for i := range data {
		data[i] = byte(i)
	}
	p := &Pump{Reader: ioutil.NopCloser(bytes.NewReader(data)), Queue: q, FlowControl: true}
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	var got []byte
	deadline := time.After(5 * time.Second)
	for len(got) < len(data) {
		if b, ok := q.TryReadByte(); ok {
			got = append(got, b)
			continue
		}
		select {
		case <-q.Ready():
		case <-deadline:
			t.Fatalf("received %d of %d bytes", len(got), len(data))
		}
	}
	assert.Equal(t, data, got)
	assert.Zero(t, q.Overflows())
	assert.Equal(t, io.EOF, <-errCh)
}

type blockingReader struct {
	closed chan struct{}
}

func (r *blockingReader) Read([]byte) (int, error) {
	<-r.closed
	return 0, io.ErrClosedPipe
}

func (r *blockingReader) Close() error {
	close(r.closed)
	return nil
}

func TestPumpCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pump{Reader: &blockingReader{closed: make(chan struct{})}, Queue: syslink.NewQueue()}
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pump not stopped")
	}
}

func TestByteWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &ByteWriter{W: &buf}
	for _, b := range []byte{0xbc, 0xcf, 0x00} {
		require.NoError(t, w.WriteByte(b))
	}
	assert.Equal(t, []byte{0xbc, 0xcf, 0x00}, buf.Bytes())
}
