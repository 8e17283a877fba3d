package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// memoryTokens is an in-memory TokenSource for tests.
type memoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memoryTokens) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memoryTokens) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// failingTokens is a TokenSource whose backing store is unreadable.
type failingTokens struct{}

func (failingTokens) Load() (string, error) { return "", fmt.Errorf("cookie file unreadable") }
func (failingTokens) Save(string) error     { return nil }

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string

	r := chi.NewRouter()
	r.Post("/chat/room/group/{roomID}/join", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token-123"})

	if err := client.JoinRoom(context.Background(), 7); err != nil {
		t.Fatalf("expected join to succeed, got %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("expected Authorization header Bearer token-123, got %q", gotAuth)
	}
}

func TestClient_TokenLoadFailureSendsUnauthenticated(t *testing.T) {
	var gotAuth string
	requested := false

	r := chi.NewRouter()
	r.Post("/chat/room/group/{roomID}/join", func(w http.ResponseWriter, req *http.Request) {
		requested = true
		gotAuth = req.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, failingTokens{})

	if err := client.JoinRoom(context.Background(), 7); err != nil {
		t.Fatalf("expected the request to go out despite the token load failure, got %v", err)
	}
	if !requested {
		t.Fatal("expected the request to reach the backend")
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header without a loadable token, got %q", gotAuth)
	}
}

func TestClient_RefreshesOnceOn401(t *testing.T) {
	tokens := &memoryTokens{token: "stale"}

	var historyCalls, refreshCalls int

	r := chi.NewRouter()
	r.Get("/chat/history/{roomID}", func(w http.ResponseWriter, req *http.Request) {
		historyCalls++
		if req.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"senderEmail":"a@b.com","message":"안녕하세요"}]`)
	})
	r.Post("/api/member/refresh", func(w http.ResponseWriter, req *http.Request) {
		refreshCalls++
		fmt.Fprint(w, `{"code":200,"message":"ok","data":{"accessToken":"fresh"}}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, tokens)

	history, err := client.History(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected history to succeed after silent refresh, got %v", err)
	}

	if historyCalls != 2 {
		t.Errorf("expected exactly one retry of the original request, got %d calls", historyCalls)
	}
	if refreshCalls != 1 {
		t.Errorf("expected exactly one refresh call, got %d", refreshCalls)
	}
	if token, _ := tokens.Load(); token != "fresh" {
		t.Errorf("expected the refreshed token to be persisted, got %q", token)
	}
	if len(history) != 1 || history[0].SenderEmail != "a@b.com" {
		t.Errorf("unexpected history payload: %+v", history)
	}
}

func TestClient_RefreshFailureSurfaces401(t *testing.T) {
	var historyCalls int

	r := chi.NewRouter()
	r.Get("/chat/history/{roomID}", func(w http.ResponseWriter, req *http.Request) {
		historyCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	r.Post("/api/member/refresh", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "stale"})

	_, err := client.History(context.Background(), 7)
	if err == nil {
		t.Fatal("expected history to fail when the refresh fails")
	}
	if status := StatusOf(err); status != http.StatusUnauthorized {
		t.Errorf("expected a 401 status error, got %v", err)
	}
	if historyCalls != 1 {
		t.Errorf("expected no retry after a failed refresh, got %d calls", historyCalls)
	}
}

func TestClient_SecondUnauthorizedReturned(t *testing.T) {
	var historyCalls int

	r := chi.NewRouter()
	r.Get("/chat/history/{roomID}", func(w http.ResponseWriter, req *http.Request) {
		historyCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	r.Post("/api/member/refresh", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"code":200,"message":"ok","data":{"accessToken":"fresh"}}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "stale"})

	_, err := client.History(context.Background(), 7)
	if err == nil {
		t.Fatal("expected history to fail when the retry is also unauthorized")
	}
	if status := StatusOf(err); status != http.StatusUnauthorized {
		t.Errorf("expected a 401 status error, got %v", err)
	}
	if historyCalls != 2 {
		t.Errorf("expected exactly two calls (original plus one retry), got %d", historyCalls)
	}
}

func TestClient_ServerErrorDetection(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chat/room/group/{roomID}/join", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token"})

	err := client.JoinRoom(context.Background(), 7)
	if err == nil {
		t.Fatal("expected join to fail on a 500")
	}
	if !IsServerError(err) {
		t.Errorf("expected a 500 to classify as a server error, got %v", err)
	}
}

func TestClient_ConflictIsNotServerError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/chat/room/group/{roomID}/join", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token"})

	err := client.JoinRoom(context.Background(), 7)
	if err == nil {
		t.Fatal("expected join to report the conflict")
	}
	if IsServerError(err) {
		t.Errorf("expected a 409 not to classify as a server error, got %v", err)
	}
	if status := StatusOf(err); status != http.StatusConflict {
		t.Errorf("expected status 409, got %d", status)
	}
}

func TestClient_HistoryDecodesBareArray(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/chat/history/{roomID}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "roomID") != "3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `[{"senderEmail":"a@b.com","message":"첫 메시지"},{"senderEmail":"b@c.com","message":"둘째 메시지"}]`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token"})

	history, err := client.History(context.Background(), 3)
	if err != nil {
		t.Fatalf("expected history to succeed, got %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two messages, got %d", len(history))
	}
	if history[1].Message != "둘째 메시지" {
		t.Errorf("unexpected second message: %+v", history[1])
	}
}

func TestClient_UnreadEndpoints(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/chat/unread/count", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"count":4}`)
	})
	r.Get("/chat/unread/rooms", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `[{"roomId":7,"title":"감자 나눔","unreadCount":4}]`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token"})

	count, err := client.UnreadCount(context.Background())
	if err != nil {
		t.Fatalf("expected unread count to succeed, got %v", err)
	}
	if count != 4 {
		t.Errorf("expected unread count 4, got %d", count)
	}

	rooms, err := client.UnreadRooms(context.Background())
	if err != nil {
		t.Fatalf("expected unread rooms to succeed, got %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != 7 || rooms[0].UnreadCount != 4 {
		t.Errorf("unexpected unread rooms: %+v", rooms)
	}
}

func TestClient_UpdateNicknameEscapesQuery(t *testing.T) {
	var gotQuery string

	r := chi.NewRouter()
	r.Patch("/api/member/update", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.Query().Get("nickname")
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := NewClient(server.URL, &memoryTokens{token: "token"})

	if err := client.UpdateNickname(context.Background(), "새 닉네임&값"); err != nil {
		t.Fatalf("expected nickname update to succeed, got %v", err)
	}
	if gotQuery != "새 닉네임&값" {
		t.Errorf("expected the nickname to survive query escaping, got %q", gotQuery)
	}
}
