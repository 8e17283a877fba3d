/*
Package main is the entry point for the 알뜰모아 chat client.

It is responsible for loading configuration, initializing the global logging
system, hydrating the session store from the persisted access token, opening
the requested chat room session, relaying stdin lines as outbound messages,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
so the connection is always torn down.
*/
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ttlmoa/internal/api"
	"ttlmoa/internal/chat"
	"ttlmoa/internal/configs"
	"ttlmoa/internal/pkg/errs"
	"ttlmoa/internal/pkg/logx"
	"ttlmoa/internal/session"
)

// unreadPollInterval matches the web client's one-minute notification poll.
const unreadPollInterval = time.Minute

func main() {
	roomID := flag.Int64("room", 0, "chat room id to open")
	flag.Parse()

	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("api_base_url", cfg.APIBaseURL).
		Str("ws_url", cfg.WSURL).
		Msg("Configuration loaded successfully")

	cookies := session.NewCookieStore(cfg.TokenCookieFile)
	store := session.NewStore()
	client := api.NewClient(cfg.APIBaseURL, cookies)

	// bootstrap: settle the auth state before gating anything on it
	token, err := cookies.Load()
	if err != nil {
		logx.Warn("Failed to load persisted access token", "error", err)
	}
	if token != "" {
		store.Hydrate(token)
	} else {
		store.Clear()
	}

	if !store.IsAuthenticated() {
		fmt.Fprintln(os.Stderr, errs.NewError(errs.ErrIdentityUnknown).Message)
		os.Exit(1)
	}

	logx.Info("Signed in", "email", store.Email(), "nickname", store.Nickname(), "role", store.Role())

	if *roomID <= 0 {
		fmt.Fprintln(os.Stderr, errs.NewError(errs.ErrRoomIDInvalid).Message)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := chat.NewSession(chat.Options{
		RoomID: *roomID,
		Email:  store.Email(),
		Token:  token,
		API:    client,
		WSURL:  cfg.WSURL,
		Notify: func(customErr *errs.CustomError) {
			fmt.Fprintln(os.Stderr, customErr.Message)
		},
		OnMessage: func(message chat.Message) {
			fmt.Printf("[%s] %s: %s\n", message.SentAtDisplay, message.Sender, message.Body)
		},
		OnParticipantChange: func(delta int) {
			logx.Info("Participant count changed", "delta", delta)
		},
		OnClose: stop,
	})

	for _, message := range sess.Messages() {
		fmt.Printf("[%s] %s: %s\n", message.SentAtDisplay, message.Sender, message.Body)
	}

	if customErr := sess.Open(ctx); customErr != nil {
		os.Exit(1)
	}

	go pollUnread(ctx, client, store)
	go readInput(ctx, sess, client, cookies, store, stop)

	<-ctx.Done()

	sess.Close()
	logx.Info("Chat client stopped.")
}

// readInput relays stdin lines to the session: "/leave" leaves the room,
// "/logout" signs out and exits, "/nick <name>" renames the user, anything
// else is published as a message.
func readInput(ctx context.Context, sess *chat.Session, client *api.Client, cookies *session.CookieStore, store *session.Store, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue

		case line == "/leave":
			if customErr := sess.LeaveRoom(ctx); customErr != nil {
				fmt.Fprintln(os.Stderr, customErr.Message)
			}

		case line == "/logout":
			// server-side invalidation is best-effort; local state always clears
			if err := client.Logout(ctx); err != nil {
				logx.Warn("Logout request failed", "error", err)
			}
			if err := cookies.Drop(); err != nil {
				logx.Warn("Failed to drop persisted access token", "error", err)
			}
			store.Clear()
			stop()
			return

		case strings.HasPrefix(line, "/nick "):
			nickname := strings.TrimSpace(strings.TrimPrefix(line, "/nick "))
			if nickname == "" {
				continue
			}
			if err := client.UpdateNickname(ctx, nickname); err != nil {
				logx.Warn("Failed to update nickname", "error", err)
				continue
			}
			store.PatchNickname(nickname)
			fmt.Printf("닉네임이 %s(으)로 변경되었습니다.\n", nickname)

		default:
			if customErr := sess.SendMessage(line); customErr != nil {
				fmt.Fprintln(os.Stderr, customErr.Message)
			}
		}
	}
}

// pollUnread refreshes the store's unread notification counters once a minute
// and announces increases, the way the web header plays its notification sound.
func pollUnread(ctx context.Context, client *api.Client, store *session.Store) {
	ticker := time.NewTicker(unreadPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		count, err := client.UnreadCount(ctx)
		if err != nil {
			logx.Warn("Failed to poll unread count", "error", err)
			continue
		}

		rooms, err := client.UnreadRooms(ctx)
		if err != nil {
			logx.Warn("Failed to poll unread rooms", "error", err)
			rooms = nil
		}

		mapped := make([]session.UnreadRoom, 0, len(rooms))
		for _, dto := range rooms {
			mapped = append(mapped, session.UnreadRoom{
				RoomID:      dto.RoomID,
				Title:       dto.Title,
				UnreadCount: dto.UnreadCount,
			})
		}

		if count > store.UnreadCount() {
			fmt.Fprintf(os.Stderr, "읽지 않은 메시지 %d개\n", count)
		}

		store.SetUnread(count, mapped)
	}
}
