package timesource

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

const nistLine = "60962 25-10-14 23:50:00 50 0 0 645.7 UTC(NIST) * "

// serveOnce accepts one connection, drains the request and writes reply.
func serveOnce(t *testing.T, reply string) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		_, _ = io.WriteString(conn, reply)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func testClient(host string, port int) *Client {
	c := NewClient(host, port)
	c.Settle = 10 * time.Millisecond
	c.ReadTimeout = time.Second
	c.DialTimeout = time.Second
	return c
}

func TestFetchUTCFindsMarkedLine(t *testing.T) {
	host, port := serveOnce(t, "\n"+nistLine+"\r\n")

	raw, err := testClient(host, port).FetchUTC(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RawTime(nistLine[:len(nistLine)-1]), raw)
}

func TestFetchUTCWithoutMarkerIsUnavailable(t *testing.T) {
	host, port := serveOnce(t, "HTTP/1.1 400 Bad Request\r\n\r\n")

	raw, err := testClient(host, port).FetchUTC(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Unavailable, raw)
}

func TestFetchUTCConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	raw, err := testClient("127.0.0.1", port).FetchUTC(context.Background())

	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, Unavailable, raw)
}

func TestFindTimestampHandlesBareCR(t *testing.T) {
	body := "junk\r" + nistLine + "\rtrailer"
	assert.Contains(t, string(FindTimestamp(body)), "23:50:00")
}

func TestToLocalWrapsPastMidnight(t *testing.T) {
	lt, err := ToLocal(RawTime(nistLine), 3)
	require.NoError(t, err)
	assert.Equal(t, model.LocalTime{Hour: 2, Minute: 50, Second: 0}, lt)
	assert.Equal(t, "02:50:00", lt.String())
}

func TestToLocalNegativeOffset(t *testing.T) {
	raw := RawTime("60962 25-10-14 01:15:30 50 0 0 645.7 UTC(NIST) * ")
	lt, err := ToLocal(raw, -5)
	require.NoError(t, err)
	assert.Equal(t, model.LocalTime{Hour: 20, Minute: 15, Second: 30}, lt)
}

func TestToLocalToleratesLeadingWhitespace(t *testing.T) {
	lt, err := ToLocal(RawTime("\n  "+nistLine), 0)
	require.NoError(t, err)
	assert.Equal(t, 23, lt.Hour)
}

func TestToLocalMalformed(t *testing.T) {
	for _, raw := range []RawTime{Unavailable, "60962 25-10-14", "60962 25-10-14 2x:50:00 50 UTC(NIST)", "60962 25-10-14 23-50-00 50 UTC(NIST)"} {
		_, err := ToLocal(raw, 1)
		assert.ErrorIs(t, err, ErrMalformedTime, string(raw))
	}
}

type scriptedSource struct {
	calls int
	err   error
	raw   RawTime
}

func (s *scriptedSource) FetchUTC(context.Context) (RawTime, error) {
	s.calls++
	return s.raw, s.err
}

func TestBreakerOpensAfterConsecutiveConnectFailures(t *testing.T) {
	src := &scriptedSource{err: errors.New("dial: refused")}
	src.err = errors.Join(ErrConnect, src.err)

	var transitions []string
	b := NewBreaker(src, BreakerSettings{Failures: 2, OpenFor: time.Hour, OnStateFunc: func(from, to string) {
		transitions = append(transitions, from+">"+to)
	}})

	for i := 0; i < 2; i++ {
		_, err := b.FetchUTC(context.Background())
		assert.ErrorIs(t, err, ErrConnect)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.FetchUTC(context.Background())
	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, 2, src.calls, "open breaker must not reach the source")
	assert.Equal(t, []string{"closed>open"}, transitions)
}

func TestBreakerIgnoresUnavailableReadings(t *testing.T) {
	src := &scriptedSource{raw: Unavailable}
	b := NewBreaker(src, BreakerSettings{Failures: 1})

	for i := 0; i < 3; i++ {
		raw, err := b.FetchUTC(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Unavailable, raw)
	}
	assert.Equal(t, "closed", b.State())
	assert.Equal(t, 3, src.calls)
}
