package transport

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

// Listener accepts streams for a device waiting for its peer.
type Listener interface {
	Accept() (io.ReadWriteCloser, error)
	Close() error
	Addr() string
}

// Listen waits for peers at rawURL. For serial URLs there is no peer to
// wait for: Accept opens the port, and opens it again once the previous
// session closed it.
func Listen(rawURL string) (Listener, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid link URL")
	}
	switch u.Scheme {
	case "serial":
		if _, err := SerialConfig(u); err != nil {
			return nil, err
		}
		return &portListener{
			open:   func() (io.ReadWriteCloser, error) { return Open(rawURL) },
			addr:   rawURL,
			doneCh: make(chan struct{}),
		}, nil
	case "tcp":
		ln, err := net.Listen("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return &tcpListener{ln}, nil
	case "ws":
		return listenWebsocket(u)
	}
	return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
}

type tcpListener struct {
	net.Listener
}

func (l *tcpListener) Accept() (io.ReadWriteCloser, error) {
	return l.Listener.Accept()
}

func (l *tcpListener) Addr() string {
	return "tcp://" + l.Listener.Addr().String()
}

// portListener hands out one open port at a time. The port is reopened
// on the Accept after the previous session closed it.
type portListener struct {
	open   func() (io.ReadWriteCloser, error)
	addr   string
	lock   sync.Mutex
	conn   *portConn
	doneCh chan struct{}
	once   sync.Once
}

type portConn struct {
	io.ReadWriteCloser
	once     sync.Once
	closedCh chan struct{}
}

func (c *portConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ReadWriteCloser.Close()
		close(c.closedCh)
	})
	return err
}

func (l *portListener) Accept() (io.ReadWriteCloser, error) {
	l.lock.Lock()
	prev := l.conn
	l.lock.Unlock()
	if prev != nil {
		select {
		case <-prev.closedCh:
		case <-l.doneCh:
			return nil, io.EOF
		}
	}
	select {
	case <-l.doneCh:
		return nil, io.EOF
	default:
	}
	stream, err := l.open()
	if err != nil {
		return nil, err
	}
	conn := &portConn{ReadWriteCloser: stream, closedCh: make(chan struct{})}
	l.lock.Lock()
	l.conn = conn
	l.lock.Unlock()
	return conn, nil
}

func (l *portListener) Close() error {
	l.once.Do(func() { close(l.doneCh) })
	l.lock.Lock()
	conn := l.conn
	l.lock.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (l *portListener) Addr() string {
	return l.addr
}

// wsConn is closed by whoever ends the session, which releases the
// websocket handler goroutine.
type wsConn struct {
	*websocket.Conn
	once   sync.Once
	doneCh chan struct{}
}

func (c *wsConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.doneCh) })
	return err
}

type wsListener struct {
	ln     net.Listener
	path   string
	connCh chan *wsConn
	doneCh chan struct{}
	once   sync.Once
}

func listenWebsocket(u *url.URL) (Listener, error) {
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	l := &wsListener{
		ln:     ln,
		path:   u.Path,
		connCh: make(chan *wsConn),
		doneCh: make(chan struct{}),
	}
	if l.path == "" {
		l.path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(l.path, websocket.Handler(l.serve))
	go func() {
		if err := http.Serve(ln, mux); err != nil {
			glog.V(2).Infof("websocket server stopped: %v", err)
		}
	}()
	return l, nil
}

func (l *wsListener) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	c := &wsConn{Conn: conn, doneCh: make(chan struct{})}
	select {
	case l.connCh <- c:
	case <-l.doneCh:
		return
	}
	select {
	case <-c.doneCh:
	case <-l.doneCh:
	}
}

func (l *wsListener) Accept() (io.ReadWriteCloser, error) {
	select {
	case c := <-l.connCh:
		return c, nil
	case <-l.doneCh:
		return nil, io.EOF
	}
}

func (l *wsListener) Close() error {
	l.once.Do(func() { close(l.doneCh) })
	return l.ln.Close()
}

func (l *wsListener) Addr() string {
	return "ws://" + l.ln.Addr().String() + l.path
}
