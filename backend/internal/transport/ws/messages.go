package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"x-scene/backend/internal/control"
	"x-scene/backend/internal/world"
)

// ErrUnknownMessage тип сообщения не поддерживается
var ErrUnknownMessage = errors.New("ws: unknown message type")

// GetMessageType возвращает тип сообщения на основе входных данных
func GetMessageType(data []byte) (string, error) {
	var baseMessage struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &baseMessage); err != nil {
		return "", fmt.Errorf("error parsing message: %w", err)
	}
	return baseMessage.Type, nil
}

// ParseMessage разбирает входящее сообщение в соответствующий тип
func ParseMessage(data []byte) (any, error) {
	msgType, err := GetMessageType(data)
	if err != nil {
		return nil, err
	}

	switch msgType {
	case MessageTypeKey:
		var msg KeyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing key message: %w", err)
		}
		if msg.Event != KeyEventDown && msg.Event != KeyEventUp {
			return nil, fmt.Errorf("error parsing key message: event %q", msg.Event)
		}
		if msg.Key == "" && msg.Code == "" {
			return nil, errors.New("error parsing key message: key and code are empty")
		}
		return &msg, nil

	case MessageTypeWheel:
		var msg WheelMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing wheel message: %w", err)
		}
		return &msg, nil

	case MessageTypePointer:
		var msg PointerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing pointer message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing ping message: %w", err)
		}
		return &msg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msgType)
}

// ToEvent переводит сообщение ввода в событие очереди управления
func ToEvent(msg any) (control.Event, bool) {
	switch m := msg.(type) {
	case *KeyMessage:
		return control.Event{Type: control.EventKey, Key: control.KeyEvent{
			Down:  m.Event == KeyEventDown,
			Key:   m.Key,
			Code:  m.Code,
			Ctrl:  m.Ctrl,
			Shift: m.Shift,
			Alt:   m.Alt,
			Meta:  m.Meta,
		}}, true
	case *WheelMessage:
		return control.Event{Type: control.EventWheel, Wheel: m.Delta}, true
	case *PointerMessage:
		return control.Event{Type: control.EventPointer, DX: m.DX, DY: m.DY, Buttons: m.Buttons}, true
	}
	return control.Event{}, false
}

// NewInfoMessage создает приветственное сообщение
func NewInfoMessage(sessionID, status, message string) *InfoMessage {
	return &InfoMessage{
		Type:       MessageTypeInfo,
		SessionID:  sessionID,
		Status:     status,
		Message:    message,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{Type: MessageTypeError, Message: message}
}

// CreatePongMessage создает новое pong-сообщение
func CreatePongMessage(clientTime int64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// StateOf снимает состояние сущности. Вызывается на горутине тика.
func StateOf(e *world.Entity) EntityState {
	p := e.WorldPosition()
	r := e.Local.Rotation
	return EntityState{
		ID:       e.ID,
		Kind:     string(e.Kind),
		Position: [3]float64{p.X(), p.Y(), p.Z()},
		Rotation: [3]float64{r.X(), r.Y(), r.Z()},
		Visible:  e.Visible,
		Enabled:  e.Enabled,
		Airborne: e.Control.Airborne,
	}
}
