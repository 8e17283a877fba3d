/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct.
User-facing messages are in Korean, matching the product's notification text.
*/
package errs

import "net/http"

// errorMap stores the CustomError template corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request and Transport Errors
	ErrRequestFailed:      {Code: ErrRequestFailed, Message: "요청 처리에 실패했습니다. 잠시 후 다시 시도해주세요."},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "로그인이 필요합니다.", Status: http.StatusUnauthorized},
	ErrPublishRateLimited: {Code: ErrPublishRateLimited, Message: "메시지를 너무 빠르게 보내고 있습니다. 잠시 후 다시 시도해주세요.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Room and Messaging Errors
	ErrRoomIDInvalid: {Code: ErrRoomIDInvalid, Message: "유효하지 않은 채팅방 정보입니다."},
	ErrJoinFailed:    {Code: ErrJoinFailed, Message: "채팅방 참여에 실패했습니다. (서버 내부 오류)"},
	ErrConnectFailed: {Code: ErrConnectFailed, Message: "WebSocket 연결에 오류가 발생했습니다. 잠시 후 다시 시도해주세요."},
	ErrNotConnected:  {Code: ErrNotConnected, Message: "채팅방에 연결되어 있지 않습니다."},
	ErrMessageEmpty:  {Code: ErrMessageEmpty, Message: "메시지를 입력해주세요."},
	ErrPublishFailed: {Code: ErrPublishFailed, Message: "메시지 전송에 실패했습니다. 연결 상태를 확인해주세요."},
	ErrLeaveFailed:   {Code: ErrLeaveFailed, Message: "채팅방을 나가는 데 실패했습니다."},

	// 3xxx: Identity and Token Errors
	ErrIdentityUnknown: {Code: ErrIdentityUnknown, Message: "로그인 정보가 없습니다."},
	ErrTokenMalformed:  {Code: ErrTokenMalformed, Message: "유효하지 않은 인증 정보입니다."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "문제가 발생했습니다. 잠시 후 다시 시도해주세요.", Status: http.StatusInternalServerError},
}
