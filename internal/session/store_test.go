package session

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	body, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".c2ln"
}

func TestStore_StartsUnknown(t *testing.T) {
	store := NewStore()

	if !store.IsAuthLoading() {
		t.Error("expected a fresh store to be in the loading state")
	}
	if store.IsAuthenticated() {
		t.Error("expected a fresh store to be unauthenticated")
	}
	if store.Email() != "" || store.Nickname() != "" || store.Role() != "" {
		t.Error("expected a fresh store to hold no identity fields")
	}
}

func TestStore_HydrateSuccess(t *testing.T) {
	store := NewStore()

	store.Hydrate(makeToken(t, map[string]any{
		"sub":      "a@b.com",
		"nickname": "Ann",
		"roles":    []string{"ADMIN"},
	}))

	if store.IsAuthLoading() {
		t.Error("expected loading to settle after hydration")
	}
	if !store.IsAuthenticated() {
		t.Error("expected hydration with a valid token to authenticate")
	}
	if store.Email() != "a@b.com" {
		t.Errorf("expected email a@b.com, got %s", store.Email())
	}
	if store.Nickname() != "Ann" {
		t.Errorf("expected nickname Ann, got %s", store.Nickname())
	}
	if store.Role() != "ADMIN" {
		t.Errorf("expected role ADMIN, got %s", store.Role())
	}
}

func TestStore_HydrateFailure(t *testing.T) {
	store := NewStore()

	store.Hydrate("not-a-jwt")

	if store.IsAuthLoading() {
		t.Error("expected loading to settle even on hydration failure")
	}
	if store.IsAuthenticated() {
		t.Error("expected hydration failure to leave the store anonymous")
	}
	if store.Email() != "" {
		t.Errorf("expected empty email after failed hydration, got %s", store.Email())
	}
}

func TestStore_RehydrationOverwrites(t *testing.T) {
	store := NewStore()

	store.Hydrate(makeToken(t, map[string]any{"sub": "a@b.com", "nickname": "Ann", "role": "USER"}))
	store.Hydrate(makeToken(t, map[string]any{"sub": "b@c.com", "nickname": "Ben", "role": "ADMIN"}))

	if store.Email() != "b@c.com" || store.Nickname() != "Ben" || store.Role() != "ADMIN" {
		t.Errorf("expected re-hydration to overwrite identity fields, got %s/%s/%s",
			store.Email(), store.Nickname(), store.Role())
	}
	if !store.IsAuthenticated() {
		t.Error("expected store to remain authenticated after re-hydration")
	}
}

func TestStore_AuthenticatedToAnonymousOnBadToken(t *testing.T) {
	store := NewStore()

	store.Hydrate(makeToken(t, map[string]any{"sub": "a@b.com"}))
	store.Hydrate("garbage")

	if store.IsAuthenticated() {
		t.Error("expected a failed re-hydration to drop back to anonymous")
	}
	if store.Email() != "" {
		t.Error("expected identity fields to reset on failed re-hydration")
	}
	if store.IsAuthLoading() {
		t.Error("expected loading to stay settled")
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store := NewStore()
	store.Hydrate(makeToken(t, map[string]any{"sub": "a@b.com", "nickname": "Ann"}))
	store.SetUnread(3, []UnreadRoom{{RoomID: 1, Title: "공구방", UnreadCount: 3}})

	store.Clear()
	first := snapshot(store)

	store.Clear()
	second := snapshot(store)

	if first != second {
		t.Errorf("expected repeated Clear calls to produce identical state: %+v vs %+v", first, second)
	}
	if first.authenticated || first.loading || first.email != "" || first.unreadCount != 0 {
		t.Errorf("expected Clear to produce the anonymous state, got %+v", first)
	}
	if len(store.UnreadRooms()) != 0 {
		t.Error("expected Clear to drop the unread room list")
	}
}

func TestStore_PatchNicknameOnlyTouchesNickname(t *testing.T) {
	store := NewStore()
	store.Hydrate(makeToken(t, map[string]any{"sub": "a@b.com", "nickname": "Ann", "role": "USER"}))

	store.PatchNickname("새닉네임")

	if store.Nickname() != "새닉네임" {
		t.Errorf("expected nickname to be patched, got %s", store.Nickname())
	}
	if store.Email() != "a@b.com" || store.Role() != "USER" || !store.IsAuthenticated() {
		t.Error("expected PatchNickname to leave every other field untouched")
	}
}

func TestStore_LoadingSettlesExactlyOnce(t *testing.T) {
	store := NewStore()

	if !store.IsAuthLoading() {
		t.Fatal("expected loading at process start")
	}

	store.Hydrate("garbage")
	if store.IsAuthLoading() {
		t.Fatal("expected loading false after the first hydration attempt")
	}

	store.Hydrate(makeToken(t, map[string]any{"sub": "a@b.com"}))
	store.Clear()
	store.Hydrate("garbage")

	if store.IsAuthLoading() {
		t.Error("expected loading to remain false regardless of later calls")
	}
}

func TestStore_UnreadCounters(t *testing.T) {
	store := NewStore()

	store.SetUnread(2, []UnreadRoom{
		{RoomID: 7, Title: "감자 나눔", UnreadCount: 1},
		{RoomID: 9, Title: "쌀 공구", UnreadCount: 1},
	})

	if store.UnreadCount() != 2 {
		t.Errorf("expected unread count 2, got %d", store.UnreadCount())
	}

	rooms := store.UnreadRooms()
	if len(rooms) != 2 || rooms[0].RoomID != 7 {
		t.Errorf("unexpected unread rooms snapshot: %+v", rooms)
	}

	// the snapshot is a copy
	rooms[0].RoomID = 99
	if store.UnreadRooms()[0].RoomID != 7 {
		t.Error("expected UnreadRooms to return a copy")
	}
}

type storeSnapshot struct {
	email, nickname, role       string
	authenticated, loading      bool
	unreadCount                 int
}

func snapshot(s *Store) storeSnapshot {
	return storeSnapshot{
		email:         s.Email(),
		nickname:      s.Nickname(),
		role:          s.Role(),
		authenticated: s.IsAuthenticated(),
		loading:       s.IsAuthLoading(),
		unreadCount:   s.UnreadCount(),
	}
}
