package types

import "time"

// NotificationLevel mirrors the severity of a user-visible message
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a user-visible message (toast or inline) emitted by the controller.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// NotificationFor converts err into an error notification.
func NotificationFor(err error) Notification {
	return Notification{
		Level:     LevelError,
		Code:      Code(err),
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
}
