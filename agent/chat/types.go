package chat

import (
	"time"

	contractx "github.com/vndang/shoptalk/agent/contract"
)

// TurnRequest is one inbound chat turn. UserID and SessionID may be empty;
// the service generates both and reports them back in the result.
type TurnRequest struct {
	UserID             string
	SessionID          string
	Message            string
	MaxContextMessages int
	UserProfile        *contractx.UserProfile
	IncludeRaw         bool
	IncludeTimestamp   bool
	IncludeThinking    bool
	IncludeSessionData bool
}

// TurnResult is the outcome of a handled turn.
type TurnResult struct {
	Response    string
	UserID      string
	SessionID   string
	RawResponse string
	Thinking    string
	Timestamp   time.Time
	SessionData map[string]any
	TokensUsed  int64
	ModelName   string
}

// Frame is one streaming chunk. The final frame sets Done and carries the
// metadata.
type Frame struct {
	Content  string         `json:"content"`
	Done     bool           `json:"done"`
	Metadata *FrameMetadata `json:"metadata,omitempty"`
}

type FrameMetadata struct {
	TokensUsed int64  `json:"tokens_used"`
	ModelName  string `json:"model_name"`
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
}

// turnState threads a turn through the pipeline graph nodes.
type turnState struct {
	req       TurnRequest
	userID    string
	sessionID string
	messages  []contractx.Message
	reply     contractx.Reply
	raw       string
	response  string
	thinking  string
	timestamp time.Time
}
