/*
Package api is the REST client for the 알뜰모아 backend.

This file defines the wire types shared with the backend and the StatusError
returned for non-2xx responses.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChatMessageDTO is the backend's chat message shape, used both by the history
// endpoint and by the streaming subscription.
type ChatMessageDTO struct {
	SenderEmail string `json:"senderEmail"`
	Message     string `json:"message"`
}

// OutboundMessageDTO is the publish payload for the streaming endpoint.
type OutboundMessageDTO struct {
	RoomID      int64  `json:"roomId"`
	Message     string `json:"message"`
	SenderEmail string `json:"senderEmail"`
}

// UnreadRoomDTO describes one room with unread messages in the notification poll.
type UnreadRoomDTO struct {
	RoomID      int64  `json:"roomId"`
	Title       string `json:"title"`
	UnreadCount int    `json:"unreadCount"`
}

// envelope is the backend's standard response wrapper. Some chat endpoints
// return bare payloads instead; those are decoded directly.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Status int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend request failed with status %d", e.Status)
}

// IsServerError reports whether err is a StatusError in the 5xx range.
// The join-conflict policy hinges on this: only a genuine server error aborts
// chat startup, anything else is treated as "already a member".
func IsServerError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status >= 500
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a StatusError.
func StatusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}
