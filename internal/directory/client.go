// Package directory implements the line-oriented client protocol this
// node uses to register itself and discover peers through the external
// directory service.
package directory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Endpoint is a (host, port) pair, used both for the directory's address
// and for peer addresses it returns.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ErrClosedMidResponse is returned by Peers when the directory connection
// closes before the terminating "end" line arrives.
var ErrClosedMidResponse = errors.New("directory: connection closed mid-response")

// Client is a single connection to the directory service. All requests
// are serialized: the directory protocol has exactly one outstanding
// "nodes" query in flight at a time per connection.
type Client struct {
	log   log.Logger
	local Endpoint

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Scanner
}

// Dial opens a connection to the directory at addr, registers this
// node's local endpoint, and returns a ready-to-use Client.
func Dial(ctx context.Context, logger log.Logger, addr string, local Endpoint) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("directory: dial %s: %w", addr, err)
	}
	c := &Client{
		log:   logger.New("component", "directory-client"),
		local: local,
		conn:  conn,
		r:     bufio.NewScanner(conn),
	}
	if err := c.register(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) register() error {
	line := fmt.Sprintf("INSC %s %d\n", c.local.Host, c.local.Port)
	if _, err := c.conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("directory: register: %w", err)
	}
	c.log.Info("registered with directory", "host", c.local.Host, "port", c.local.Port)
	return nil
}

// Peers queries the directory for the current peer roster and filters
// out this node's own endpoint. A closed connection mid-response is
// reported as an error rather than a partial list.
func (c *Client) Peers() ([]Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.conn.Write([]byte("nodes\n")); err != nil {
		return nil, fmt.Errorf("directory: send nodes query: %w", err)
	}

	var peers []Endpoint
	for c.r.Scan() {
		line := strings.TrimSpace(c.r.Text())
		if strings.EqualFold(line, "end") {
			return filterLocal(peers, c.local), nil
		}
		ep, err := parseNodeLine(line)
		if err != nil {
			c.log.Warn("ignoring malformed directory line", "line", line, "err", err)
			continue
		}
		peers = append(peers, ep)
	}
	if err := c.r.Err(); err != nil {
		return nil, fmt.Errorf("directory: read peer list: %w", err)
	}
	return nil, ErrClosedMidResponse
}

// PeerAddrs is Peers with each Endpoint rendered as a dialable "host:port"
// string, the shape internal/download and internal/correct consume.
func (c *Client) PeerAddrs() ([]string, error) {
	peers, err := c.Peers()
	if err != nil {
		return nil, err
	}
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.String()
	}
	return addrs, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func parseNodeLine(line string) (Endpoint, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || !strings.EqualFold(fields[0], "node") {
		return Endpoint{}, fmt.Errorf("directory: malformed node line %q", line)
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil {
		return Endpoint{}, fmt.Errorf("directory: malformed port in %q: %w", line, err)
	}
	return Endpoint{Host: fields[1], Port: port}, nil
}

func filterLocal(peers []Endpoint, local Endpoint) []Endpoint {
	out := peers[:0]
	for _, p := range peers {
		if p.Host == local.Host && p.Port == local.Port {
			continue
		}
		out = append(out, p)
	}
	return out
}
