package streamprobe

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiowire/streamprobe/proto"
)

const (
	frameLogInterval      = 100
	transcriptionInterval = 50
	mediaPlayInterval     = 100

	syntheticStreamID = "test_stream"
)

// Session is the lifetime and state of a single accepted connection. It is
// owned by the goroutine running its receive loop; only the echo pump writes
// to the connection concurrently, guarded by writeMu.
type Session struct {
	id        string
	conn      *websocket.Conn
	stats     *Stats
	logger    *slog.Logger
	startedAt time.Time

	frames uint64
	events uint64

	synthetic bool
	welcome   bool
	echo      *echoBuffer

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, stats *Stats, logger *slog.Logger, opts *serverOptions) *Session {
	id := proto.ID()

	s := &Session{
		id:        id,
		conn:      conn,
		stats:     stats,
		logger:    logger.With(slog.String("session_id", id)),
		startedAt: time.Now(),
		synthetic: opts.syntheticEvents,
		welcome:   opts.welcome,
	}

	if opts.audioEcho {
		s.echo = newEchoBuffer(opts.echoBufferSize)
	}

	return s
}

// run processes inbound messages strictly in arrival order until the peer
// disconnects or the connection fails.
func (s *Session) run() {
	defer s.finish()

	if s.welcome {
		if err := s.send(proto.NewWelcome()); err != nil {
			s.logger.Error("send welcome failed", slog.Any("err", err))
			return
		}
	}

	if s.echo != nil {
		defer s.echo.Close()
		go s.echoLoop()
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("connection closed by peer")
			} else {
				s.logger.Warn("connection closed", slog.Any("err", err))
			}
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			s.handleFrame(data)
		case websocket.TextMessage:
			s.handleControl(data)
		}
	}
}

// handleFrame counts an opaque audio frame. No header parsing is done.
func (s *Session) handleFrame(data []byte) {
	s.frames++
	s.stats.onFrame(len(data))

	if s.frames%frameLogInterval == 0 {
		s.logger.Info("audio frames received",
			slog.Uint64("frames", s.frames),
			slog.Int("latest_len", len(data)),
		)
	}

	if s.echo != nil {
		if _, err := s.echo.Write(data); err != nil {
			s.logger.Error("echo buffer write failed", slog.Any("err", err))
		}
	}
}

// handleControl decodes a JSON control message and acknowledges it. Invalid
// JSON is logged and dropped without a reply.
func (s *Session) handleControl(data []byte) {
	evt, err := proto.ParseControl(data)
	if err != nil {
		s.logger.Warn("dropping invalid control message",
			slog.String("data", string(data)),
			slog.Any("err", err),
		)
		return
	}

	s.events++
	total := s.stats.onEvent(len(data))

	s.logger.Info("control message received", slog.Any("event", evt))

	if err := s.send(proto.NewAck(evt)); err != nil {
		s.logger.Error("send ack failed", slog.Any("err", err))
		return
	}

	if !s.synthetic {
		return
	}

	if total%transcriptionInterval == 0 {
		if err := s.send(proto.NewTranscription(syntheticStreamID, total)); err != nil {
			s.logger.Error("send transcription event failed", slog.Any("err", err))
		}
	}

	if total%mediaPlayInterval == 0 {
		if err := s.send(proto.NewMediaPlay(syntheticStreamID, total)); err != nil {
			s.logger.Error("send media play event failed", slog.Any("err", err))
		}
	}
}

func (s *Session) send(evt proto.NamedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.EventName(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// echoLoop pumps buffered audio back to the peer as binary frames.
func (s *Session) echoLoop() {
	buf := make([]byte, 8_000)
	for {
		n, err := s.echo.Read(buf)
		if err != nil {
			return
		}

		s.writeMu.Lock()
		err = s.conn.WriteMessage(websocket.BinaryMessage, buf[:n])
		s.writeMu.Unlock()

		if err != nil {
			s.logger.Error("echo write failed", slog.Any("err", err))
			return
		}
	}
}

// close tears the connection down from the server side.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *Session) finish() {
	s.logger.Info("session ended",
		slog.Duration("duration", time.Since(s.startedAt)),
		slog.Uint64("audio_frames", s.frames),
		slog.Uint64("events", s.events),
	)
}
