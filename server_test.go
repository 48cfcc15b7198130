package streamprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, options ...Option) *Server {
	t.Helper()

	options = append([]Option{
		WithAddr("127.0.0.1:0"),
		WithReportInterval(time.Hour),
	}, options...)

	srv := NewServer(options...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, srv.Run(ctx))

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		require.NoError(t, srv.Shutdown(shutdownCtx))
	})

	return srv
}

func dialServer(t *testing.T, srv *Server, path string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d%s", srv.Port(), path), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServerAcknowledgesControlMessages(t *testing.T) {
	srv := startServer(t)
	conn := dialServer(t, srv, "/audio")

	original := map[string]any{
		"type":      "test",
		"message":   "Hello from test client",
		"timestamp": "2024-01-01T00:00:00Z",
	}
	require.NoError(t, conn.WriteJSON(original))

	reply := readReply(t, conn)
	require.Equal(t, "ack", reply["type"])
	require.Equal(t, original, reply["original_event"])

	require.Eventually(t, func() bool {
		return srv.Stats().ControlEvents == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerCountsAudioFrames(t *testing.T) {
	srv := startServer(t)
	conn := dialServer(t, srv, "/audio")

	frame := make([]byte, 160)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
	}

	require.Eventually(t, func() bool {
		snap := srv.Stats()
		return snap.AudioFrames == 3 && snap.BytesTotal == 480
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerDropsInvalidJSON(t *testing.T) {
	srv := startServer(t)
	conn := dialServer(t, srv, "/audio")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("this is not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "probe"}))

	// the invalid message produced no reply, the first reply acknowledges
	// the valid one
	reply := readReply(t, conn)
	require.Equal(t, "ack", reply["type"])
	require.Equal(t, "probe", reply["original_event"].(map[string]any)["type"])

	require.Eventually(t, func() bool {
		return srv.Stats().ControlEvents == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerSyntheticEventSchedule(t *testing.T) {
	srv := startServer(t)
	conn := dialServer(t, srv, "/audio")

	var acks, transcriptions, mediaPlays int
	for i := 1; i <= 100; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{"seq": i}))

		replies := 1
		if i%transcriptionInterval == 0 {
			replies++
		}
		if i%mediaPlayInterval == 0 {
			replies++
		}

		for j := 0; j < replies; j++ {
			reply := readReply(t, conn)
			switch {
			case reply["type"] == "ack":
				acks++
			case reply["event"] == "transcription.send":
				transcriptions++
			case reply["event"] == "media.play":
				mediaPlays++
			default:
				t.Fatalf("unexpected reply: %v", reply)
			}
		}
	}

	require.Equal(t, 100, acks)
	require.Equal(t, 2, transcriptions)
	require.Equal(t, 1, mediaPlays)
}

func TestServerSyntheticEventsDisabled(t *testing.T) {
	srv := startServer(t, WithSyntheticEvents(false))
	conn := dialServer(t, srv, "/audio")

	for i := 1; i <= 50; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{"seq": i}))
		reply := readReply(t, conn)
		require.Equal(t, "ack", reply["type"])
	}

	// no transcription event follows the 50th ack
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestServerPathHandling(t *testing.T) {
	srv := startServer(t)

	_, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/wrong", srv.Port()), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)

	anyPathSrv := startServer(t, WithAnyPath())
	conn := dialServer(t, anyPathSrv, "/whatever")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "probe"}))
	require.Equal(t, "ack", readReply(t, conn)["type"])
}

func TestServerWelcomeMessage(t *testing.T) {
	srv := startServer(t, WithWelcome(true))
	conn := dialServer(t, srv, "/audio")

	welcome := readReply(t, conn)
	require.Equal(t, "connection_established", welcome["event"])
	require.NotEmpty(t, welcome["timestamp"])
}

func TestServerAudioEcho(t *testing.T) {
	srv := startServer(t, WithAudioEcho(true))
	conn := dialServer(t, srv, "/audio")

	payload := []byte("fake_audio_data")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	require.Equal(t, payload, data)
}

// captureHandler records log messages so tests can assert on emitted lines.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) find(msg string) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []slog.Record
	for _, r := range h.records {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

func TestServerFinalSessionSummary(t *testing.T) {
	capture := &captureHandler{}
	srv := startServer(t, WithLogger(slog.New(capture)))
	conn := dialServer(t, srv, "/audio")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "probe"}))
	readReply(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 160)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 160)))

	require.Eventually(t, func() bool {
		return srv.Stats().AudioFrames == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(time.Second)))

	require.Eventually(t, func() bool {
		return len(capture.find("session ended")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	summary := capture.find("session ended")[0]
	counts := map[string]uint64{}
	summary.Attrs(func(a slog.Attr) bool {
		if a.Key == "audio_frames" || a.Key == "events" {
			counts[a.Key] = a.Value.Uint64()
		}
		return true
	})
	require.Equal(t, uint64(2), counts["audio_frames"])
	require.Equal(t, uint64(1), counts["events"])

	require.Eventually(t, func() bool {
		return srv.Stats().SessionsActive == 0
	}, 5*time.Second, 10*time.Millisecond)
}
