/*
Package chat owns the lifecycle of one real-time chat connection per open room.

This file defines the Session struct, the per-modal controller: guarded
startup (join, handshake, history, subscription, read-marking), outbound
publishing, leaving, and the teardown guarantee that holds on every exit path.
It also enforces the process-wide single-active-connection contract.
*/
package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ttlmoa/internal/api"
	"ttlmoa/internal/pkg/errs"
	"ttlmoa/internal/pkg/logx"
)

// RoomAPI is the slice of the REST client a chat session depends on.
type RoomAPI interface {
	JoinRoom(ctx context.Context, roomID int64) error
	History(ctx context.Context, roomID int64) ([]api.ChatMessageDTO, error)
	MarkRead(ctx context.Context, roomID int64) error
	LeaveRoom(ctx context.Context, roomID int64) error
}

// Notify delivers a user-facing error, the way the web client raised alerts.
type Notify func(err *errs.CustomError)

// Options configures one chat session.
type Options struct {
	// RoomID must be positive; a non-positive id means "no session".
	RoomID int64

	// Email is the current identity. Empty means unknown, which blocks startup.
	Email string

	// Token is the bearer token used for the streaming handshake.
	Token string

	// API performs the session's REST calls.
	API RoomAPI

	// WSURL is the streaming endpoint.
	WSURL string

	// Notify surfaces user-facing errors. Nil falls back to logging.
	Notify Notify

	// OnMessage is invoked for every message appended to the display log.
	OnMessage func(Message)

	// OnParticipantChange is invoked with -1 after a successful leave.
	OnParticipantChange func(delta int)

	// OnClose is invoked after a successful leave closes the session.
	OnClose func()
}

// connRegistry enforces the at-most-one-active-connection contract
// process-wide: activating a new connection deactivates the previous one.
type connRegistry struct {
	mu   sync.Mutex
	conn *Conn
}

var activeConns connRegistry

// takeover deactivates whatever connection currently holds the slot.
func (r *connRegistry) takeover() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		r.conn.Deactivate()
		r.conn = nil
	}
}

// set places conn in the slot, deactivating any distinct previous holder.
func (r *connRegistry) set(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && r.conn != conn {
		r.conn.Deactivate()
	}
	r.conn = conn
}

// release clears the slot if conn still holds it.
func (r *connRegistry) release(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == conn {
		r.conn = nil
	}
}

// Session is the per-modal owner of one real-time chat connection's lifecycle,
// bound to the identity it was created with.
type Session struct {
	opts Options

	mu            sync.Mutex
	state         State
	conn          *Conn
	messages      []Message
	participating bool

	// brokerErrOnce limits broker error reporting to once per session.
	brokerErrOnce sync.Once

	logger zerolog.Logger
}

// NewSession constructs a session in the Idle state, its display log seeded
// with the welcome system message.
func NewSession(opts Options) *Session {
	return &Session{
		opts:  opts,
		state: StateIdle,
		messages: []Message{{
			Sender:        SystemSender,
			Body:          WelcomeMessage,
			SentAtDisplay: formatClock(time.Now()),
			System:        true,
		}},
		logger: logx.Logger().With().
			Str("component", "ChatSession").
			Int64("room_id", opts.RoomID).
			Logger(),
	}
}

// Open runs the startup sequence: join the room, perform the streaming
// handshake, load history, subscribe, and mark the room read.
//
// With a non-positive room id or an unknown identity it performs no network or
// socket action and the session stays Idle. A join failure is fatal only when
// it is a genuine server error; any other rejection means the user is already
// a member and startup continues. Hard failures move the session to the
// terminal Failed state and are surfaced through Notify.
func (s *Session) Open(ctx context.Context) *errs.CustomError {
	if s.opts.RoomID <= 0 || s.opts.Email == "" {
		s.logger.Info().Str("email", s.opts.Email).Msg("Skipping chat connection: invalid room id or unknown identity")
		return nil
	}

	s.mu.Lock()
	if s.state == StateFailed || s.state == StateClosed {
		s.mu.Unlock()
		s.logger.Warn().Str("state", s.state.String()).Msg("Open called on a terminal session")
		return errs.NewError(errs.ErrNotConnected)
	}

	// rebuild, never reuse: any connection this controller still holds goes first
	if s.conn != nil {
		s.conn.Deactivate()
		activeConns.release(s.conn)
		s.conn = nil
	}
	s.state = StateJoining
	s.mu.Unlock()

	if err := s.opts.API.JoinRoom(ctx, s.opts.RoomID); err != nil {
		if api.IsServerError(err) {
			s.logger.Error().Err(err).Msg("Join request failed with a server error. Aborting startup.")
			return s.fail(errs.ErrJoinFailed)
		}

		s.logger.Info().
			Int("status", api.StatusOf(err)).
			Msg("Join request rejected. Treating as existing member and continuing.")
	}

	s.setState(StateConnecting)

	// the new session claims the single connection slot before dialing
	activeConns.takeover()

	conn, err := Dial(s.opts.WSURL, s.opts.Token, s.handleFrame)
	if err != nil {
		s.logger.Error().Err(err).Msg("Streaming handshake failed")
		return s.fail(errs.ErrConnectFailed)
	}

	s.mu.Lock()
	s.conn = conn
	s.participating = true
	s.state = StateConnected
	s.mu.Unlock()

	activeConns.set(conn)

	go s.loadHistory(ctx)

	if err := conn.Subscribe(topicDestination(s.opts.RoomID)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to queue subscription frame")
	}

	go s.markRead(ctx)

	s.logger.Info().Msg("Chat session connected")
	return nil
}

// SendMessage publishes a message to the room, fire-and-forget: a nil return
// means the frame was queued; the sender sees their own message only once the
// subscription delivers it back.
func (s *Session) SendMessage(body string) *errs.CustomError {
	if s.opts.Email == "" {
		customErr := errs.NewError(errs.ErrIdentityUnknown)
		s.notify(customErr)
		return customErr
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return errs.NewError(errs.ErrMessageEmpty)
	}

	s.mu.Lock()
	state := s.state
	conn := s.conn
	participating := s.participating
	s.mu.Unlock()

	if state != StateConnected || conn == nil || !conn.IsActive() || !participating {
		return errs.NewError(errs.ErrNotConnected)
	}

	dto := api.OutboundMessageDTO{
		RoomID:      s.opts.RoomID,
		Message:     trimmed,
		SenderEmail: s.opts.Email,
	}

	if customErr := conn.Publish(publishDestination(s.opts.RoomID), dto); customErr != nil {
		s.notify(customErr)
		return customErr
	}

	return nil
}

// LeaveRoom asks the backend to remove the user from the room. On success the
// session flips participation off, reports the participant decrement, tears
// the connection down, appends a local departure message, and closes. On
// failure the session is left exactly as it was so the user may retry.
func (s *Session) LeaveRoom(ctx context.Context) *errs.CustomError {
	if s.opts.Email == "" {
		customErr := errs.NewError(errs.ErrIdentityUnknown)
		s.notify(customErr)
		return customErr
	}

	s.mu.Lock()
	previous := s.state
	if previous == StateConnected {
		s.state = StateDisconnecting
	}
	s.mu.Unlock()

	if err := s.opts.API.LeaveRoom(ctx, s.opts.RoomID); err != nil {
		s.mu.Lock()
		s.state = previous
		s.mu.Unlock()

		s.logger.Error().Err(err).Msg("Leave request failed. Session remains open.")
		customErr := errs.NewError(errs.ErrLeaveFailed)
		s.notify(customErr)
		return customErr
	}

	departure := Message{
		Sender:        SystemSender,
		Body:          LeftRoomMessage,
		SentAtDisplay: formatClock(time.Now()),
		System:        true,
	}

	s.mu.Lock()
	s.participating = false
	conn := s.conn
	s.conn = nil
	s.messages = append(s.messages, departure)
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		conn.Deactivate()
		activeConns.release(conn)
	}

	if s.opts.OnParticipantChange != nil {
		s.opts.OnParticipantChange(-1)
	}
	if s.opts.OnMessage != nil {
		s.opts.OnMessage(departure)
	}
	if s.opts.OnClose != nil {
		s.opts.OnClose()
	}

	s.logger.Info().Msg("Left chat room")
	return nil
}

// Close tears the session down. It deactivates the connection if one is
// active, holds on every exit path, and is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.state != StateFailed && s.state != StateClosed {
		s.state = StateClosed
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Deactivate()
		activeConns.release(conn)
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a snapshot of the display log, oldest first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}

// IsParticipating reports whether the user is still a room participant.
func (s *Session) IsParticipating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participating
}

// handleFrame is the delivery callback invoked from the connection's read pump.
func (s *Session) handleFrame(frame Frame) {
	switch frame.Type {
	case FrameMessage:
		var dto api.ChatMessageDTO
		if err := json.Unmarshal(frame.Payload, &dto); err != nil {
			s.logger.Warn().Err(err).Msg("Broker sent invalid MESSAGE payload")
			return
		}

		message := Message{
			Sender:        displayName(dto.SenderEmail, s.opts.Email),
			Body:          dto.Message,
			SentAtDisplay: formatClock(time.Now()),
		}

		s.mu.Lock()
		s.messages = append(s.messages, message)
		s.mu.Unlock()

		if s.opts.OnMessage != nil {
			s.opts.OnMessage(message)
		}

	case FrameError:
		s.logger.Error().
			Str("frame_id", frame.ID).
			Bytes("payload", frame.Payload).
			Msg("Broker reported an error")

		s.brokerErrOnce.Do(func() {
			s.notify(errs.NewError(errs.ErrConnectFailed))
		})

	default:
		s.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Broker sent unsupported frame type")
	}
}

// loadHistory fetches the room's stored messages and splices them in right
// after the leading welcome message. The subscription may already be live
// while this runs; the window between the two is an accepted limitation, not
// an exactly-once guarantee.
func (s *Session) loadHistory(ctx context.Context) {
	history, err := s.opts.API.History(ctx, s.opts.RoomID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load chat history")
		return
	}

	received := formatClock(time.Now())

	mapped := make([]Message, 0, len(history))
	for _, dto := range history {
		mapped = append(mapped, Message{
			Sender:        displayName(dto.SenderEmail, s.opts.Email),
			Body:          dto.Message,
			SentAtDisplay: received,
		})
	}

	s.mu.Lock()
	spliced := make([]Message, 0, len(s.messages)+len(mapped))
	spliced = append(spliced, s.messages[0])
	spliced = append(spliced, mapped...)
	spliced = append(spliced, s.messages[1:]...)
	s.messages = spliced
	s.mu.Unlock()

	s.logger.Info().Int("message_count", len(mapped)).Msg("Chat history loaded")

	if s.opts.OnMessage != nil {
		for _, message := range mapped {
			s.opts.OnMessage(message)
		}
	}
}

// markRead marks the room as read, best-effort: a failure is logged and never
// surfaced, since failing to mark as read is not user-blocking.
func (s *Session) markRead(ctx context.Context) {
	if err := s.opts.API.MarkRead(ctx, s.opts.RoomID); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to mark room as read")
	}
}

// fail moves the session to the terminal Failed state and surfaces the error.
func (s *Session) fail(code int) *errs.CustomError {
	s.setState(StateFailed)

	customErr := errs.NewError(code)
	s.notify(customErr)
	return customErr
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) notify(customErr *errs.CustomError) {
	if s.opts.Notify != nil {
		s.opts.Notify(customErr)
		return
	}
	s.logger.Warn().Int("code", customErr.Code).Msg(customErr.Message)
}
