package mirror

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *ws.Conn) streaming.SnapshotPayload {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	snap, err := streaming.DecodeSnapshot(data)
	require.NoError(t, err)
	return snap
}

func TestWebSocket_SnapshotOnConnectAndChange(t *testing.T) {
	store := view.NewStore()
	store.Set(view.RegionMode, view.ModeView{Label: view.ModeManual})

	s := New(store, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	conn := dial(t, srv)
	first := readSnapshot(t, conn)
	require.Contains(t, first.Regions, "mode")
	mode := first.Regions["mode"].(map[string]any)
	assert.Equal(t, view.ModeManual, mode["label"])

	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 5*time.Millisecond)

	store.Set(view.RegionMode, view.ModeView{Label: view.ModeAuto})
	next := readSnapshot(t, conn)
	assert.Greater(t, next.Seq, first.Seq)
	mode = next.Regions["mode"].(map[string]any)
	assert.Equal(t, view.ModeAuto, mode["label"])
}

func TestWebSocket_PingAck(t *testing.T) {
	s := New(view.NewStore(), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readSnapshot(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"ping"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ack streaming.AckMessage
	require.NoError(t, json.Unmarshal(data, &ack))
	assert.Equal(t, streaming.AckMessage{Type: "ack", For: "ping"}, ack)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	s := New(view.NewStore(), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandleView(t *testing.T) {
	store := view.NewStore()
	store.Set(view.RegionConnect, view.ConnectDone())
	srv := httptest.NewServer(New(store, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/view")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, view.LabelConnected, body["connect"]["label"])

	resp2, err := http.Post(srv.URL+"/api/view", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Init()
	metrics.ObserveConnect(nil)

	srv := httptest.NewServer(New(view.NewStore(), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "subconsole_connect_total")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	s := New(view.NewStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/view")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
