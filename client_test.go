package streamprobe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func probeURL(srv *Server) string {
	return fmt.Sprintf("ws://127.0.0.1:%d/audio", srv.Port())
}

func TestProbeExchange(t *testing.T) {
	srv := startServer(t)

	err := RunProbe(context.Background(), ClientConfig{
		Dial: DialConfig{URL: probeURL(srv)},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := srv.Stats()
		return snap.ControlEvents == 1 && snap.AudioFrames == 1
	}, 5*time.Second, 10*time.Millisecond)

	// one 150 byte audio payload plus the probe event
	snap := srv.Stats()
	require.Equal(t, uint64(2), snap.Messages)
	require.GreaterOrEqual(t, snap.BytesTotal, uint64(150))
}

func TestProbeSkipsWelcomeEvent(t *testing.T) {
	srv := startServer(t, WithWelcome(true))

	err := RunProbe(context.Background(), ClientConfig{
		Dial: DialConfig{URL: probeURL(srv)},
	})
	require.NoError(t, err)
}

func TestProbeConnectFailure(t *testing.T) {
	err := RunProbe(context.Background(), ClientConfig{
		Dial: DialConfig{
			URL:            "ws://127.0.0.1:1/audio",
			ConnectTimeout: time.Second,
		},
		ReplyTimeout: time.Second,
	})
	require.Error(t, err)
}

func TestProbeAudioPayload(t *testing.T) {
	payload := probeAudio()
	require.Len(t, payload, 150)

	evt := defaultProbeEvent()
	require.Equal(t, "test", evt.Type)
	require.Equal(t, "Hello from test client", evt.Message)
	require.Equal(t, "2024-01-01T00:00:00Z", evt.Timestamp)
}
