package channel

import (
	"errors"
	"net"
	"os"
)

// Receiver yields one datagram per call.
type Receiver interface {
	// Receive reads one datagram into buf. Implementations return
	// net.ErrClosed once closed.
	Receive(buf []byte) (int, error)
	Close() error
}

// Sender writes one datagram per call.
type Sender interface {
	Send(b []byte) error
	Close() error
}

// UnixReceiver is a bound unixgram socket.
type UnixReceiver struct {
	path string
	conn *net.UnixConn
}

// ListenUnixgram binds a datagram socket at path, replacing a stale one.
func ListenUnixgram(path string) (*UnixReceiver, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &ChannelError{Op: "listen", Path: path, Err: err}
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, &ChannelError{Op: "listen", Path: path, Err: err}
	}
	return &UnixReceiver{path: path, conn: conn}, nil
}

// Receive implements Receiver.
func (r *UnixReceiver) Receive(buf []byte) (int, error) {
	n, _, err := r.conn.ReadFromUnix(buf)
	return n, err
}

// Close closes the socket and removes its path.
func (r *UnixReceiver) Close() error {
	err := r.conn.Close()
	_ = os.Remove(r.path)
	return err
}

// UnixSender is a connected unixgram socket.
type UnixSender struct {
	path string
	conn *net.UnixConn
}

// DialUnixgram connects a datagram socket to the peer bound at path.
func DialUnixgram(path string) (*UnixSender, error) {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, &ChannelError{Op: "dial", Path: path, Err: err}
	}
	return &UnixSender{path: path, conn: conn}, nil
}

// Send implements Sender.
func (s *UnixSender) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// Close closes the socket.
func (s *UnixSender) Close() error {
	return s.conn.Close()
}
