package notify

import (
	"bytes"
	"encoding/json"
	"time"
)

// MessageType tags every server-to-client message
type MessageType string

const (
	MessageTypeConnected       MessageType = "connected"
	MessageTypeError           MessageType = "error"
	MessageTypeSubscribed      MessageType = "subscribed"
	MessageTypeUnsubscribed    MessageType = "unsubscribed"
	MessageTypeResourceUpdated MessageType = "resource_updated"
	MessageTypeSyncStatus      MessageType = "sync_status"
	MessageTypePong            MessageType = "pong"
)

// Client actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// ResourceTypes is the allow-list of subscribable resource types
var ResourceTypes = map[string]bool{
	"brand":     true,
	"prompt":    true,
	"response":  true,
	"campaign":  true,
	"keyword":   true,
	"dashboard": true,
	"sync_job":  true,
}

// ValidResourceType reports whether t may be subscribed to
func ValidResourceType(t string) bool {
	return ResourceTypes[t]
}

// ResourceID accepts a JSON number or string and always encodes as a string
type ResourceID string

func (id *ResourceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ResourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ResourceID(n.String())
	return nil
}

// Message is a server-to-client event. Which fields are set depends on Type.
type Message struct {
	Type         MessageType `json:"type"`
	Message      string      `json:"message,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	ResourceType string      `json:"resource_type,omitempty"`
	ResourceID   ResourceID  `json:"resource_id,omitempty"`
	Editor       string      `json:"editor,omitempty"`
	Version      int         `json:"version,omitempty"`
	SyncType     string      `json:"sync_type,omitempty"`
	BrandID      string      `json:"brand_id,omitempty"`
	JobID        string      `json:"job_id,omitempty"`
	Status       string      `json:"status,omitempty"`
	Progress     *int        `json:"progress,omitempty"`
	Timestamp    interface{} `json:"timestamp,omitempty"`
}

// ClientMessage is a client-to-server request
type ClientMessage struct {
	Action       string      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   ResourceID  `json:"resource_id"`
	Timestamp    interface{} `json:"timestamp,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func Connected(userID string) Message {
	return Message{Type: MessageTypeConnected, UserID: userID, Message: "connection established", Timestamp: now()}
}

func Error(msg string) Message {
	return Message{Type: MessageTypeError, Message: msg, Timestamp: now()}
}

func Subscribed(resourceType string, resourceID ResourceID) Message {
	return Message{Type: MessageTypeSubscribed, ResourceType: resourceType, ResourceID: resourceID, Timestamp: now()}
}

func Unsubscribed(resourceType string, resourceID ResourceID) Message {
	return Message{Type: MessageTypeUnsubscribed, ResourceType: resourceType, ResourceID: resourceID, Timestamp: now()}
}

// ResourceUpdated announces a change to one resource
func ResourceUpdated(resourceType string, resourceID ResourceID, editor string, version int) Message {
	return Message{
		Type:         MessageTypeResourceUpdated,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Editor:       editor,
		Version:      version,
		Timestamp:    now(),
	}
}

// SyncStatus is the payload of a sync_status event
type SyncStatus struct {
	SyncType string
	BrandID  string
	JobID    string
	Status   string
	Message  string
	Progress *int
}

func SyncStatusMessage(s SyncStatus) Message {
	return Message{
		Type:      MessageTypeSyncStatus,
		SyncType:  s.SyncType,
		BrandID:   s.BrandID,
		JobID:     s.JobID,
		Status:    s.Status,
		Message:   s.Message,
		Progress:  s.Progress,
		Timestamp: now(),
	}
}

// Pong answers a ping, echoing the client's timestamp when one was sent
func Pong(timestamp interface{}) Message {
	if timestamp == nil {
		timestamp = now()
	}
	return Message{Type: MessageTypePong, Timestamp: timestamp}
}
