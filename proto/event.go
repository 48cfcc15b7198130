package proto

import (
	"time"
)

// NamedEvent is implemented by all outbound messages
type NamedEvent interface {
	EventName() string
}

// WelcomeEvent is sent once right after a connection was accepted.
type WelcomeEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

func (e *WelcomeEvent) EventName() string {
	return "connection_established"
}

func NewWelcome() *WelcomeEvent {
	return &WelcomeEvent{
		Event:     "connection_established",
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "Ready to receive audio stream",
	}
}

// Ack acknowledges an inbound control message and carries the decoded
// original payload back to the peer.
type Ack struct {
	Type          string         `json:"type"`
	Timestamp     string         `json:"timestamp"`
	OriginalEvent map[string]any `json:"original_event"`
}

func (e *Ack) EventName() string {
	return "ack"
}

func NewAck(original map[string]any) *Ack {
	return &Ack{
		Type:          "ack",
		Timestamp:     time.Now().Format(time.RFC3339),
		OriginalEvent: original,
	}
}

type TranscriptionPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
	Timestamp  int64   `json:"timestamp"` // unix milliseconds
}

// TranscriptionEvent is a synthetic transcription result used to exercise
// the peer's event handling.
type TranscriptionEvent struct {
	Event    string               `json:"event"`
	StreamID string               `json:"streamId"`
	Payload  TranscriptionPayload `json:"payload"`
}

func (e *TranscriptionEvent) EventName() string {
	return "transcription.send"
}

func NewTranscription(streamID string, seq uint64) *TranscriptionEvent {
	return &TranscriptionEvent{
		Event:    "transcription.send",
		StreamID: streamID,
		Payload: TranscriptionPayload{
			Text:       transcriptionText(seq),
			Confidence: 0.95,
			IsFinal:    true,
			Timestamp:  time.Now().UnixMilli(),
		},
	}
}

type MediaPlayPayload struct {
	AudioData  string `json:"audioData"` // base64 encoded audio
	SampleRate int    `json:"sampleRate"`
	Format     string `json:"format"`
	Checkpoint string `json:"checkpoint"`
}

// MediaPlayEvent is a synthetic media playback command.
type MediaPlayEvent struct {
	Event    string           `json:"event"`
	StreamID string           `json:"streamId"`
	Payload  MediaPlayPayload `json:"payload"`
}

func (e *MediaPlayEvent) EventName() string {
	return "media.play"
}

func NewMediaPlay(streamID string, seq uint64) *MediaPlayEvent {
	return &MediaPlayEvent{
		Event:    "media.play",
		StreamID: streamID,
		Payload: MediaPlayPayload{
			AudioData:  "SGVsbG8gV29ybGQ=", // "Hello World"
			SampleRate: 8000,
			Format:     "LINEAR16",
			Checkpoint: checkpointName(seq),
		},
	}
}

var (
	_ NamedEvent = &WelcomeEvent{}
	_ NamedEvent = &Ack{}
	_ NamedEvent = &TranscriptionEvent{}
	_ NamedEvent = &MediaPlayEvent{}
)
