/*
Package chat owns the lifecycle of one real-time chat connection per open room.

This file defines the session states, the displayed message shape, the wire
frames exchanged with the streaming endpoint, and the sender/time display rules.
*/
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of one chat session.
type State int32

const (
	// StateIdle means the session has performed no network or socket action.
	StateIdle State = iota

	// StateJoining means the join request is in flight.
	StateJoining

	// StateConnecting means the streaming handshake is in flight.
	StateConnecting

	// StateConnected means the subscription is live and publishing is allowed.
	StateConnected

	// StateDisconnecting means a leave request is in flight.
	StateDisconnecting

	// StateFailed is terminal: a hard join or handshake failure occurred.
	// Recovery requires constructing a new session.
	StateFailed

	// StateClosed is terminal: the session was left or torn down.
	StateClosed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateJoining:
		return "Joining"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	// SystemSender is the display name of locally generated system messages.
	SystemSender = "시스템"

	// SelfDisplayName is the display name shown for the current user's own messages.
	SelfDisplayName = "나"

	// WelcomeMessage is the system message every session's log starts with.
	WelcomeMessage = "채팅방에 오신 것을 환영합니다! 나눔에 대해 자유롭게 대화해보세요."

	// LeftRoomMessage is the local system message appended after leaving a room.
	LeftRoomMessage = "채팅방에서 나갔습니다."
)

// Message is one entry of a session's display log, oldest first.
type Message struct {
	// Sender is the display name: SelfDisplayName for the current user,
	// the email local part for everyone else, SystemSender for system entries.
	Sender string

	// Body is the message text.
	Body string

	// SentAtDisplay is the local-clock formatted time of receipt,
	// not a server timestamp.
	SentAtDisplay string

	// System marks locally generated system messages.
	System bool
}

// displayName maps a sender email to the name shown in the log.
func displayName(senderEmail, myEmail string) string {
	if senderEmail == myEmail {
		return SelfDisplayName
	}
	if at := strings.Index(senderEmail, "@"); at > 0 {
		return senderEmail[:at]
	}
	return senderEmail
}

// formatClock renders a local time the way the web client did: "오후 03:04".
func formatClock(t time.Time) string {
	meridiem := "오전"
	hour := t.Hour()
	if hour >= 12 {
		meridiem = "오후"
	}

	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}

	return fmt.Sprintf("%s %02d:%02d", meridiem, hour12, t.Minute())
}

// FrameType identifies a streaming frame.
type FrameType string

const (
	// FrameSubscribe asks the broker to deliver a room topic to this connection.
	FrameSubscribe FrameType = "SUBSCRIBE"

	// FrameSend publishes a payload to a room's outbound destination.
	FrameSend FrameType = "SEND"

	// FrameMessage is an inbound chat message delivered on a subscribed topic.
	FrameMessage FrameType = "MESSAGE"

	// FrameError is an inbound broker error report.
	FrameError FrameType = "ERROR"
)

// Frame is the JSON envelope exchanged over the streaming connection.
type Frame struct {
	ID          string          `json:"id,omitempty"`
	Type        FrameType       `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// topicDestination is the subscription destination for a room.
func topicDestination(roomID int64) string {
	return fmt.Sprintf("/topic/%d", roomID)
}

// publishDestination is the outbound destination for a room.
func publishDestination(roomID int64) string {
	return fmt.Sprintf("/publish/%d", roomID)
}
