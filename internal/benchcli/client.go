// Package benchcli handles instrument communication from benchctl. It
// wraps a TCP connection to one instrument endpoint with line-oriented
// query helpers.
package benchcli

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pfjsystems/virtbench/protocol"
)

const dialTimeout = 2 * time.Second

// Client is a connection to a single instrument endpoint.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to an instrument at the given host:port address.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to instrument at '%s': %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Query sends one command line and reads one response line.
func (c *Client) Query(line string) (string, error) {
	if err := protocol.WriteCommand(c.conn, line); err != nil {
		return "", err
	}
	return protocol.ReadResponse(c.r)
}

// Batch sends several command lines in a single write and reads one
// response line per command, in order.
func (c *Client) Batch(lines []string) ([]string, error) {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		if !strings.HasSuffix(line, protocol.Terminator) {
			b.WriteString(protocol.Terminator)
		}
	}
	if err := protocol.WriteCommand(c.conn, b.String()); err != nil {
		return nil, err
	}

	resps := make([]string, 0, len(lines))
	for range lines {
		resp, err := protocol.ReadResponse(c.r)
		if err != nil {
			return resps, err
		}
		resps = append(resps, resp)
	}
	return resps, nil
}
