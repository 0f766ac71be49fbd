// Package timesource fetches UTC from a daytime-protocol authority and turns
// it into local wall-clock time.
package timesource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// RawTime is one daytime line as returned by the authority.
type RawTime string

// Unavailable is returned, with a nil error, when the authority answered but
// no line carried a timestamp.
const Unavailable RawTime = ""

// Marker identifies the timestamp line in a NIST daytime response.
const Marker = "UTC(NIST)"

var ErrConnect = errors.New("unable to connect to time service")

// Source yields raw UTC readings.
type Source interface {
	FetchUTC(ctx context.Context) (RawTime, error)
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const (
	DefaultHost        = "time.nist.gov"
	DefaultPort        = 13
	DefaultDialTimeout = 5 * time.Second
	DefaultSettle      = 100 * time.Millisecond
	DefaultReadTimeout = 3 * time.Second

	maxResponse = 4096
)

// DefaultRequest is written after connecting. Daytime servers ignore it, it
// only nudges middleboxes that wait for client bytes.
const DefaultRequest = "HEAD / HTTP/1.1\r\nAccept: */*\r\nUser-Agent: feeder\r\n\r\n"

// Client talks to a daytime (RFC 867) server.
type Client struct {
	Host        string
	Port        int
	Dialer      Dialer
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Settle      time.Duration
	Request     string
}

func NewClient(host string, port int) *Client {
	return &Client{
		Host:        host,
		Port:        port,
		Dialer:      &net.Dialer{},
		DialTimeout: DefaultDialTimeout,
		ReadTimeout: DefaultReadTimeout,
		Settle:      DefaultSettle,
		Request:     DefaultRequest,
	}
}

func (c *Client) addr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FetchUTC performs one exchange. It blocks for at most
// DialTimeout + Settle + ReadTimeout.
func (c *Client) FetchUTC(ctx context.Context) (RawTime, error) {
	d := c.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	dialCtx, cancel := context.WithTimeout(ctx, orDefault(c.DialTimeout, DefaultDialTimeout))
	conn, err := d.DialContext(dialCtx, "tcp", c.addr())
	cancel()
	if err != nil {
		return Unavailable, fmt.Errorf("%w: %s: %v", ErrConnect, c.addr(), err)
	}
	defer conn.Close()

	if c.Request != "" {
		_ = conn.SetWriteDeadline(time.Now().Add(orDefault(c.ReadTimeout, DefaultReadTimeout)))
		// A failed write is not fatal, the server may already have answered.
		_, _ = io.WriteString(conn, c.Request)
	}

	select {
	case <-ctx.Done():
		return Unavailable, ctx.Err()
	case <-time.After(c.Settle):
	}

	_ = conn.SetReadDeadline(time.Now().Add(orDefault(c.ReadTimeout, DefaultReadTimeout)))
	body, rerr := io.ReadAll(io.LimitReader(conn, maxResponse))
	if rerr != nil && len(body) == 0 && !isTimeout(rerr) {
		return Unavailable, fmt.Errorf("read %s: %w", c.addr(), rerr)
	}
	return FindTimestamp(string(body)), nil
}

// FindTimestamp returns the first line carrying Marker, or Unavailable.
func FindTimestamp(body string) RawTime {
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Split(splitCRLF)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.Contains(line, Marker) {
			return RawTime(line)
		}
	}
	return Unavailable
}

// splitCRLF breaks on CR, LF or CRLF.
func splitCRLF(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == '\n' {
			return i + 1, data[:i], nil
		}
		if b == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			return 0, nil, nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
