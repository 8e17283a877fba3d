/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
and in the messages surfaced to the user.
*/
package errs

// 1xxx: General Request and Transport Errors
const (
	// ErrRequestFailed indicates that a REST call to the backend failed.
	ErrRequestFailed = 1001

	// ErrUnauthorized indicates that the backend rejected the request even after a token refresh.
	ErrUnauthorized = 1002

	// ErrPublishRateLimited indicates that outbound messages are being sent faster than allowed.
	ErrPublishRateLimited = 1003
)

// 2xxx: Chat Room and Messaging Errors
const (
	// ErrRoomIDInvalid indicates that the supplied chat room id is missing or non-positive.
	ErrRoomIDInvalid = 2101

	// ErrJoinFailed indicates that the join request failed with a genuine server error.
	ErrJoinFailed = 2102

	// ErrConnectFailed indicates that the real-time connection handshake failed.
	ErrConnectFailed = 2103

	// ErrNotConnected indicates that an operation required an active chat connection.
	ErrNotConnected = 2104

	// ErrMessageEmpty indicates that the message body was empty after trimming.
	ErrMessageEmpty = 2105

	// ErrPublishFailed indicates that an outbound message could not be queued for sending.
	ErrPublishFailed = 2106

	// ErrLeaveFailed indicates that the leave-room request was rejected by the backend.
	ErrLeaveFailed = 2107
)

// 3xxx: Identity and Token Errors
const (
	// ErrIdentityUnknown indicates that the operation requires a signed-in user.
	ErrIdentityUnknown = 3001

	// ErrTokenMalformed indicates that the access token could not be decoded.
	ErrTokenMalformed = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000
)
