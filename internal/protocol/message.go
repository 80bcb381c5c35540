package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
)

// MaxMessageSize bounds a single inbound message.
const MaxMessageSize = 4096

// Message is the wire envelope in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RequestPayload struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Room     string `json:"room,omitempty"`
	Position *int   `json:"position,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Text     string `json:"text,omitempty"`
}

// DecodeRequest parses one client message. Malformed input is a protocol violation.
func DecodeRequest(data []byte) (usecase.Request, error) {
	if len(data) > MaxMessageSize {
		return usecase.Request{}, fmt.Errorf("%w: message exceeds %d bytes", apperror.ErrProtocolViolation, MaxMessageSize)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return usecase.Request{}, fmt.Errorf("%w: malformed message: %s", apperror.ErrProtocolViolation, err)
	}

	if msg.Action == "" {
		return usecase.Request{}, fmt.Errorf("%w: action is required", apperror.ErrProtocolViolation)
	}

	var payload RequestPayload
	if len(msg.Payload) > 0 && !bytes.Equal(msg.Payload, []byte("null")) {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return usecase.Request{}, fmt.Errorf("%w: malformed payload: %s", apperror.ErrProtocolViolation, err)
		}
	}

	return usecase.Request{
		Action:   usecase.Action(msg.Action),
		Username: payload.Username,
		Password: payload.Password,
		Room:     payload.Room,
		Position: payload.Position,
		Mode:     usecase.ListMode(payload.Mode),
		Text:     payload.Text,
	}, nil
}

// EncodeEvent wraps event in the envelope using its type as the action.
func EncodeEvent(event entity.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	data, err := json.Marshal(Message{Action: string(event.Type), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
