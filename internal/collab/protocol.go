package collab

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/history"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Message struct {
	Type      string              `json:"type"`
	ProjectID string              `json:"projectId,omitempty"`
	ClientID  string              `json:"clientId,omitempty"`
	UserID    string              `json:"userId,omitempty"`
	Seq       int64               `json:"seq,omitempty"`
	Payload   jsoniter.RawMessage `json:"payload"`
}

type PresencePayload struct {
	UserID      string     `json:"userId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceStatePayload maps client ids to their presence.
type PresenceStatePayload struct {
	Presences map[string]PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID   string `json:"userId"`
	ClientID string `json:"clientId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Editor sync
	TypeEditorCommand = "editor.command"
	TypeOpAck         = "op.ack"
	TypeOpNack        = "op.nack"
	TypePatchUpdate   = "patch.update"
)

// WelcomePayload is sent to a client right after it joins a room.
type WelcomePayload struct {
	ClientID  string         `json:"clientId"`
	ServerSeq int64          `json:"serverSeq"`
	Patch     patch.Patch    `json:"patch"`
	History   []history.Item `json:"history"`
}

// CommandAckPayload is the payload for op.ack messages
type CommandAckPayload struct {
	CommandID string        `json:"commandId,omitempty"`
	ServerSeq int64         `json:"serverSeq"`
	Result    editor.Result `json:"result"`
}

// CommandNackPayload is the payload for op.nack messages
type CommandNackPayload struct {
	CommandID string `json:"commandId,omitempty"`
	Reason    string `json:"reason"`
}

// PatchUpdatePayload is broadcast to the room after every state change.
type PatchUpdatePayload struct {
	ServerSeq int64          `json:"serverSeq"`
	UserID    string         `json:"userId"`
	Patch     patch.Patch    `json:"patch"`
	History   []history.Item `json:"history"`
	CanUndo   bool           `json:"canUndo"`
	CanRedo   bool           `json:"canRedo"`
}

// CommandPayload carries one editor command. ID is echoed back in the
// ack or nack.
type CommandPayload struct {
	ID      string         `json:"id,omitempty"`
	Command editor.Command `json:"command"`
}
