package streamprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// probeEvent is the fixed JSON message the probe client sends.
type probeEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func defaultProbeEvent() probeEvent {
	return probeEvent{
		Type:      "test",
		Message:   "Hello from test client",
		Timestamp: "2024-01-01T00:00:00Z",
	}
}

// probeAudio returns the fixed 150 byte binary payload.
func probeAudio() []byte {
	return bytes.Repeat([]byte("fake_audio_data"), 10)
}

type DialConfig struct {
	URL            string
	ConnectTimeout time.Duration
	Headers        http.Header
}

func (d *DialConfig) Defaults() {
	if d.URL == "" {
		d.URL = "ws://localhost:9090/audio"
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 10 * time.Second
	}
}

func (d *DialConfig) doDial(ctx context.Context) (*websocket.Conn, *http.Response, error) {
	d.Defaults()

	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.ConnectTimeout)
	defer cancel()
	return websocket.DefaultDialer.DialContext(dialCtx, u.String(), d.Headers)
}

type ClientConfig struct {
	Dial         DialConfig
	ReplyTimeout time.Duration
	Logger       *slog.Logger
}

func (c *ClientConfig) Defaults() {
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Dial.Defaults()
}

// RunProbe performs the single-shot probe exchange: connect, send one JSON
// event, await the acknowledgment, send one binary audio payload, disconnect.
// Any failure aborts the sequence with an error; there are no retries.
func RunProbe(ctx context.Context, config ClientConfig) error {
	config.Defaults()

	logger := config.Logger.With(
		slog.String("component", "client"),
		slog.String("endpoint", config.Dial.URL),
		slog.String("probe_id", uuid.NewString()),
	)

	conn, resp, err := config.Dial.doDial(ctx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.Dial.URL, err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	logger.Info("connected")

	data, err := json.Marshal(defaultProbeEvent())
	if err != nil {
		return fmt.Errorf("marshal test event: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send test event: %w", err)
	}
	logger.Info("sent test event")

	if err := awaitAck(conn, config.ReplyTimeout, logger); err != nil {
		return err
	}

	audio := probeAudio()
	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("send audio payload: %w", err)
	}
	logger.Info("sent fake audio data", slog.Int("len", len(audio)))

	logger.Info("Test completed successfully")

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe done"),
		time.Now().Add(time.Second))

	return nil
}

// awaitAck reads replies until the acknowledgment arrives. A welcome event
// sent by some server variants right after accept is logged and skipped.
func awaitAck(conn *websocket.Conn, timeout time.Duration, logger *slog.Logger) error {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		_, reply, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await ack: %w", err)
		}

		logger.Info("received", slog.String("data", string(reply)))

		var msg map[string]any
		if err := json.Unmarshal(reply, &msg); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}

		if msg["type"] == "ack" {
			return nil
		}
	}
}
