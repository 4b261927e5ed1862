// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type message struct {
	Seq   int       `json:"seq"`
	Value []float64 `json:"value"`
}

// startServer serves tr on a loopback test server and returns its ws URL.
func startServer(t *testing.T, tr *WebSocketTransport) string {
	t.Helper()
	srv := httptest.NewServer(tr.Handler())
	t.Cleanup(func() {
		_ = tr.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + SpectrumPath
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, tr *WebSocketTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return tr.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestSendBroadcastsJSON(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	url := startServer(t, tr)

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, tr, 2)

	require.NoError(t, tr.Send(message{Seq: 1, Value: []float64{0.5, 0.25}}))
	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		assert.Equal(t, 1, m.Seq)
		assert.Equal(t, []float64{0.5, 0.25}, m.Value)
	}
}

func TestSendRateLimit(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", time.Hour)
	url := startServer(t, tr)
	conn := dial(t, url)
	waitForClients(t, tr, 1)

	require.NoError(t, tr.Send(message{Seq: 1}))
	require.NoError(t, tr.Send(message{Seq: 2}))
	assert.Equal(t, 1, readMessage(t, conn).Seq)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout(), "the second frame should have been dropped")
}

func TestSendWithoutClients(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	startServer(t, tr)

	// Nothing is serialized without a receiver.
	assert.NoError(t, tr.Send(make(chan int)))
}

func TestSendMarshalError(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	url := startServer(t, tr)
	dial(t, url)
	waitForClients(t, tr, 1)

	assert.Error(t, tr.Send(make(chan int)))
	assert.Equal(t, 1, tr.ClientCount())
}

func TestClientDisconnect(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	url := startServer(t, tr)

	conn := dial(t, url)
	waitForClients(t, tr, 1)
	conn.Close()
	waitForClients(t, tr, 0)
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	url := startServer(t, tr)
	conn := dial(t, url)
	waitForClients(t, tr, 1)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 0, tr.ClientCount())
	assert.NoError(t, tr.Send(message{Seq: 1}))

	// The server side closed the connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestListenAndServeReturnsOnClose(t *testing.T) {
	tr := NewWebSocketTransport("127.0.0.1:0", 0)
	done := make(chan error, 1)
	go func() { done <- tr.ListenAndServe() }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Close")
	}
}

func TestListenAndServeBadAddress(t *testing.T) {
	tr := NewWebSocketTransport("not-an-address", 0)
	assert.Error(t, tr.ListenAndServe())
	assert.NoError(t, tr.Close())
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	for i := range 3 {
		require.NoError(t, lt.Send(message{Seq: i}))
	}
	assert.Equal(t, uint64(3), lt.Sent())
	assert.NoError(t, lt.Close())
}
