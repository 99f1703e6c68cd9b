package sink

import "net"

// ConnSink forwards log lines over an attached control connection. A write
// error (typically a broken pipe after the peer disconnects) is surfaced to
// the dispatcher, which clears the watch slot in response.
type ConnSink struct {
	conn net.Conn
}

// NewConnSink wraps an attached control connection.
func NewConnSink(conn net.Conn) *ConnSink {
	return &ConnSink{conn: conn}
}

func (s *ConnSink) Write(line string) error {
	_, err := s.conn.Write([]byte(line))
	return err
}

func (s *ConnSink) Close() error {
	return s.conn.Close()
}
