package realtime

import "time"

// ClientMessage is the inbound envelope. One flat shape covers every request
// type; unused fields stay zero.
type ClientMessage struct {
	Type           string                 `json:"type"`
	ServerID       string                 `json:"server_id,omitempty"`
	TimeRange      string                 `json:"time_range,omitempty"`
	AlertID        string                 `json:"alert_id,omitempty"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	Broadcast      bool                   `json:"broadcast,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// ServerMessage is the outbound envelope for responses, events and errors.
type ServerMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func event(msgType string, data interface{}) ServerMessage {
	return ServerMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func errorEvent(msgType, code, message string) ServerMessage {
	return ServerMessage{
		Type:      msgType,
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}
