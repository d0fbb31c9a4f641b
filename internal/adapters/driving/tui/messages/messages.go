// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/libris/internal/core/domain"
)

// MessageSubmitted is sent when the user submits a chat message.
type MessageSubmitted struct {
	Text string
}

// ReplyReceived carries the assistant turn back to the model.
type ReplyReceived struct {
	Reply domain.ChatReply
	Err   error
}

// SessionEnded is sent after the current session was discarded.
type SessionEnded struct {
	SessionID string
	Err       error
}

// StatusLoaded carries the pipeline health shown on start-up.
type StatusLoaded struct {
	Status domain.ServiceStatus
}

// ErrorOccurred is sent when an error occurs.
type ErrorOccurred struct {
	Err error
}
