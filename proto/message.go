package proto

import (
	"encoding/json"
	"fmt"
)

// ParseControl decodes an inbound text frame. Control messages are free-form
// JSON objects, typically carrying a "type" or "event" field.
func ParseControl(raw []byte) (map[string]any, error) {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid control message: %w", err)
	}
	return msg, nil
}

func transcriptionText(seq uint64) string {
	return fmt.Sprintf("Test transcription #%d", seq)
}

func checkpointName(seq uint64) string {
	return fmt.Sprintf("test_checkpoint_%d", seq)
}
