package transport

import (
	"net"

	"github.com/pion/logging"
)

// DialerConfig configures outbound TCP-UA connection establishment.
type DialerConfig struct {
	// Addr is the "host:port" to dial.
	Addr string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Dial opens a TCP connection to config.Addr and wraps it as a
// TransportConnection, driving the Connecting-Transport -> Connecting-Secure
// transition of §4.5 once it returns successfully.
func Dial(config DialerConfig) (*TCPConnection, error) {
	conn, err := net.Dial("tcp", config.Addr)
	if err != nil {
		return nil, err
	}
	return NewTCPConnection(TCPConfig{Conn: conn, LoggerFactory: config.LoggerFactory})
}

// Listener accepts inbound TCP-UA connections, handing each one to an
// AcceptHandler as a TransportConnection.
type Listener struct {
	listener net.Listener
	log      logging.LeveledLogger

	onAccept AcceptHandler
	closeCh  chan struct{}
}

// AcceptHandler is invoked once per accepted inbound connection.
type AcceptHandler func(conn *TCPConnection)

// ListenerConfig configures an inbound TCP-UA listener.
type ListenerConfig struct {
	// Listener is an optional pre-existing net.Listener. If nil, a new
	// one is created on ListenAddr.
	Listener net.Listener

	// ListenAddr is used when Listener is nil.
	ListenAddr string

	// OnAccept is called for each accepted connection. Required.
	OnAccept AcceptHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewListener creates a Listener per config.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.OnAccept == nil {
		return nil, ErrNoHandler
	}

	l := &Listener{
		listener: config.Listener,
		onAccept: config.OnAccept,
		closeCh:  make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport-listener")
	}

	if l.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = ln
	}

	go l.acceptLoop()
	return l, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error {
	select {
	case <-l.closeCh:
	default:
		close(l.closeCh)
	}
	return l.listener.Close()
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
				if l.log != nil {
					l.log.Warnf("accept failed: %v", err)
				}
				return
			}
		}

		tc, err := NewTCPConnection(TCPConfig{Conn: conn})
		if err != nil {
			conn.Close()
			continue
		}
		l.onAccept(tc)
	}
}
