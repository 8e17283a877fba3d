/*
Package api is the REST client for the 알뜰모아 backend.

This file defines the Client, which attaches the bearer token to every call
and performs one silent token refresh and retry when the backend answers 401.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ttlmoa/internal/pkg/logx"
)

const (
	requestTimeout = 6 * time.Second

	refreshPath = "/api/member/refresh"
)

// TokenSource supplies the persisted bearer token and accepts refreshed ones.
// session.CookieStore satisfies it.
type TokenSource interface {
	Load() (string, error)
	Save(token string) error
}

// Client issues authenticated REST calls against the backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient returns a Client rooted at baseURL, drawing tokens from tokens.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: logx.LoggingTransport(nil),
		},
		logger: logx.Logger().With().Str("component", "ApiClient").Logger(),
	}
}

// JoinRoom asks the backend to add the current user to the room's participants.
func (c *Client) JoinRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/room/group/%d/join", roomID), nil)
}

// History fetches the stored message history for the room, oldest first.
func (c *Client) History(ctx context.Context, roomID int64) ([]ChatMessageDTO, error) {
	var history []ChatMessageDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/history/%d", roomID), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// MarkRead marks every message in the room as read for the current user.
func (c *Client) MarkRead(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/room/%d/read", roomID), nil)
}

// LeaveRoom removes the current user from the room's participants.
func (c *Client) LeaveRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/chat/room/group/%d/leave", roomID), nil)
}

// UpdateNickname renames the current user on the backend. On success the
// caller is expected to patch the session store with the same name.
func (c *Client) UpdateNickname(ctx context.Context, nickname string) error {
	return c.do(ctx, http.MethodPatch, "/api/member/update?nickname="+url.QueryEscape(nickname), nil)
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/member/logout", nil)
}

// UnreadCount polls the total number of unread chat messages.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/unread/count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// UnreadRooms polls the list of rooms with unread messages.
func (c *Client) UnreadRooms(ctx context.Context) ([]UnreadRoomDTO, error) {
	var rooms []UnreadRoomDTO
	if err := c.do(ctx, http.MethodGet, "/chat/unread/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// do executes one request against the backend, decoding the JSON body into out
// when out is non-nil. A 401 response triggers exactly one silent token
// refresh and retry of the original request; a second 401 is returned as-is.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	res, err := c.send(ctx, method, path)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusUnauthorized {
		drain(res)

		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.logger.Warn().Err(refreshErr).Msg("Token refresh failed, surfacing original 401")
			return &StatusError{Status: http.StatusUnauthorized}
		}

		res, err = c.send(ctx, method, path)
		if err != nil {
			return err
		}
	}

	defer res.Body.Close()

	if res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return &StatusError{Status: res.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// send builds and executes a single request with the current bearer token.
func (c *Client) send(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load access token. Sending request unauthenticated.")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return res, nil
}

// refresh asks the backend for a new access token and persists it.
func (c *Client) refresh(ctx context.Context) error {
	res, err := c.send(ctx, http.MethodPost, refreshPath)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return &StatusError{Status: res.StatusCode}
	}

	var wrapped envelope
	if err := json.NewDecoder(res.Body).Decode(&wrapped); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(wrapped.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode refresh payload: %w", err)
	}

	if payload.AccessToken == "" {
		return fmt.Errorf("refresh response carried no access token")
	}

	if err := c.tokens.Save(payload.AccessToken); err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	c.logger.Info().Msg("Access token silently refreshed")
	return nil
}

func drain(res *http.Response) {
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
