package port

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	tcpPrefix = "tcp:"

	// DefaultBaudRate is used when opening a serial port with a
	// zero baud rate.
	DefaultBaudRate = 9600
	// DefaultReconnectInterval is the time Run waits before trying
	// to reopen a port that failed.
	DefaultReconnectInterval = 5 * time.Second

	readBufferSize = 256
)

var (
	// ErrOffline is returned when writing to a port which is
	// not connected.
	ErrOffline = errors.New("port offline")
)

// Handler receives the data read from a port and its online state.
type Handler interface {
	DataReceived(data []byte)
	OnlineChanged(online bool)
}

// Port is the byte transport used by a display controller.
type Port interface {
	io.Writer
	// Run connects the port and delivers data to h until ctx is
	// cancelled.
	Run(ctx context.Context, h Handler) error
	Close() error
}

type connection interface {
	io.Reader
	io.Writer
	io.Closer
}

type opener func() (connection, error)

func openTCPConnection(addr string) (connection, error) {
	return net.DialTimeout("tcp", addr, 5*time.Second)
}

func openSerialConnection(port string, baud int) (connection, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(portName(port), mode)
}

// Conn is a Port backed by a serial device or, when its name starts
// with "tcp:", by a TCP connection. It reconnects automatically.
type Conn struct {
	name              string
	open              opener
	ReconnectInterval time.Duration

	mu     sync.Mutex
	conn   connection
	closed bool
}

// Open returns a Conn for the given port name. The port is not
// opened until Run is called.
func Open(name string, baud int) *Conn {
	var open opener
	if strings.HasPrefix(name, tcpPrefix) {
		addr := name[len(tcpPrefix):]
		open = func() (connection, error) { return openTCPConnection(addr) }
	} else {
		open = func() (connection, error) { return openSerialConnection(name, baud) }
	}
	return &Conn{
		name:              name,
		open:              open,
		ReconnectInterval: DefaultReconnectInterval,
	}
}

// Name returns the port name.
func (c *Conn) Name() string {
	return c.name
}

// Online reports whether the port is currently connected.
func (c *Conn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Write implements io.Writer. It returns ErrOffline when the port
// isn't connected.
func (c *Conn) Write(data []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrOffline
	}
	log.Tracef("%s W >> % x", c.name, data)
	return conn.Write(data)
}

// Run opens the port, pumps everything read from it to h and reopens
// it after ReconnectInterval whenever it fails. It returns when ctx
// is cancelled or the Conn is closed.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	for {
		conn, err := c.open()
		if err != nil {
			log.Warnf("error opening port %s: %v", c.name, err)
		} else {
			c.serve(ctx, conn, h)
		}
		if c.isClosed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.ReconnectInterval):
		}
	}
}

func (c *Conn) serve(ctx context.Context, conn connection, h Handler) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Debugf("port %s online", c.name)
	h.OnlineChanged(true)
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			log.Tracef("%s R << % x", c.name, buf[:n])
			data := make([]byte, n)
			copy(data, buf[:n])
			h.DataReceived(data)
		}
		if err != nil {
			if ctx.Err() == nil && !c.isClosed() {
				log.Warnf("error reading from port %s: %v", c.name, err)
			}
			break
		}
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close()
	log.Debugf("port %s offline", c.name)
	h.OnlineChanged(false)
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the port and stops reconnecting.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Conn) String() string {
	return fmt.Sprintf("port %s", c.name)
}

var (
	tcpPorts []string
)

// AvailablePorts returns the list of ports in the system
// that can be used to connect to a display.
func AvailablePorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.ErrorEnumeratingPorts {
			// This happens on Windows when there are
			// no serial ports
			return tcpPorts, nil
		}
		return nil, err
	}
	filtered := filterPorts(ports)
	filtered = append(filtered, tcpPorts...)
	return filtered, nil
}

func init() {
	if tp := os.Getenv("DISPLAYCTL_TCP_PORTS"); tp != "" {
		for _, v := range strings.Split(tp, ",") {
			tcpPorts = append(tcpPorts, tcpPrefix+strings.TrimSpace(v))
		}
	}
}
