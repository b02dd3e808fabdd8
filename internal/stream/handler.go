package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Decode parses one frame into its concrete Message.
func Decode(msg []byte) (Message, error) {
	// Extract type for dispatch before decoding the payload
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &meta); err != nil {
		return nil, fmt.Errorf("extract type: %w", err)
	}

	switch strings.ToLower(meta.Type) {
	case TypeProgress:
		var m Progress
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		return m, nil
	case TypeError:
		var m Error
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return m, nil
	case TypePong:
		var m Pong
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, fmt.Errorf("decode pong: %w", err)
		}
		return m, nil
	case TypeData:
		var m Data
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, meta.Type)
	}
}

// Handlers receives decoded frames. Nil callbacks ignore that kind.
type Handlers struct {
	OnData     func(Data)
	OnProgress func(Progress)
	OnError    func(Error)
	OnPong     func(Pong)
}

// Dispatch routes a decoded message to its callback.
func (h Handlers) Dispatch(m Message) {
	switch m := m.(type) {
	case Data:
		if h.OnData != nil {
			h.OnData(m)
		}
	case Progress:
		if h.OnProgress != nil {
			h.OnProgress(m)
		}
	case Error:
		if h.OnError != nil {
			h.OnError(m)
		}
	case Pong:
		if h.OnPong != nil {
			h.OnPong(m)
		}
	}
}

// MakeMessageHandler returns a function that decodes raw WebSocket frames and
// dispatches them. Malformed or unknown frames are logged and dropped.
func MakeMessageHandler(logger *zap.Logger, h Handlers) func(msg []byte) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(msg []byte) {
		m, err := Decode(msg)
		if err != nil {
			logger.Warn("dropping websocket frame", zap.Int("bytes", len(msg)), zap.Error(err))
			return
		}
		h.Dispatch(m)
	}
}
