package ws

import "time"

// Константы для WebSocket сообщений
const (
	// от клиента
	MessageTypeKey     = "key"     // Нажатие или отпускание клавиши
	MessageTypeWheel   = "wheel"   // Прокрутка колеса
	MessageTypePointer = "pointer" // Перемещение указателя
	MessageTypePing    = "ping"    // Пинг для измерения задержки

	// от сервера
	MessageTypeInfo     = "info"     // Информация о сессии
	MessageTypeSnapshot = "snapshot" // Полное состояние сцены
	MessageTypeUpdate   = "update"   // Изменившиеся сущности
	MessageTypePong     = "pong"     // Ответ на пинг
	MessageTypeError    = "error"    // Ошибка рантайма или сообщения

	KeyEventDown = "down"
	KeyEventUp   = "up"
)

// InfoMessage приветствие с идентификатором сессии и состоянием рантайма
type InfoMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	ServerTime int64  `json:"server_time"`
}

// ErrorMessage ошибка для клиента
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PingMessage представляет пинг от клиента
type PingMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
}

// PongMessage представляет ответ на пинг от сервера
type PongMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// KeyMessage событие клавиатуры
type KeyMessage struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Key   string `json:"key"`
	Code  string `json:"code,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// WheelMessage прокрутка колеса мыши
type WheelMessage struct {
	Type  string  `json:"type"`
	Delta float64 `json:"delta"`
}

// PointerMessage перемещение указателя с зажатыми кнопками
type PointerMessage struct {
	Type    string  `json:"type"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	Buttons int     `json:"buttons"`
}

// EntityState состояние сущности в потоке
type EntityState struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind,omitempty"`
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Visible  bool       `json:"visible"`
	Enabled  bool       `json:"enabled"`
	Airborne bool       `json:"airborne,omitempty"`
}

// FrameMessage снимок или обновление сцены
type FrameMessage struct {
	Type       string        `json:"type"`
	Tick       uint64        `json:"tick"`
	ServerTime int64         `json:"server_time"`
	Entities   []EntityState `json:"entities"`
}

// GetCurrentServerTime текущее время сервера в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
