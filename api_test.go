package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRefreshRetryOn401(t *testing.T) {
	var eventCalls, refreshCalls int

	// unexpired by its claims, but the server no longer accepts it
	stale := mintToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/1/join/":
			eventCalls++
			if r.Header.Get("Authorization") != "Bearer fresh-access" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail": "Token is invalid"}`))
				return
			}
			w.Write([]byte(`{"message": "joined"}`))
		case "/auth/token/refresh/":
			refreshCalls++
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["refresh"] != "good-refresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"access": "fresh-access"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sess := &Session{Access: stale, Refresh: "good-refresh"}

	if err := client.JoinEvent(context.Background(), sess, 1); err != nil {
		t.Fatalf("JoinEvent: %v", err)
	}
	if eventCalls != 2 {
		t.Errorf("expected exactly one retry, got %d calls", eventCalls)
	}
	if refreshCalls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refreshCalls)
	}
	if sess.Access != "fresh-access" {
		t.Errorf("session access not updated: %q", sess.Access)
	}
	if !sess.Refreshed {
		t.Error("session should be marked Refreshed so the cookie gets re-saved")
	}
}

func TestExpiredTokenRefreshedBeforeSend(t *testing.T) {
	var eventCalls, refreshCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/1/join/":
			eventCalls++
			if r.Header.Get("Authorization") != "Bearer fresh-access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"message": "joined"}`))
		case "/auth/token/refresh/":
			refreshCalls++
			w.Write([]byte(`{"access": "fresh-access"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sess := &Session{Access: mintToken(t, time.Now().Add(-time.Hour)), Refresh: "good-refresh"}

	if err := client.JoinEvent(context.Background(), sess, 1); err != nil {
		t.Fatalf("JoinEvent: %v", err)
	}
	if refreshCalls != 1 {
		t.Errorf("expected one refresh before sending, got %d", refreshCalls)
	}
	if eventCalls != 1 {
		t.Errorf("expected no retry after a pre-flight refresh, got %d calls", eventCalls)
	}
	if !sess.Refreshed {
		t.Error("session should be marked Refreshed")
	}
}

func TestLogin401KeepsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token/refresh/" {
			t.Error("login failure must not trigger a token refresh")
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Invalid credentials"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Login(context.Background(), "alice", "wrong")

	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("a 401 on login is a credentials failure, not an expired session")
	}
	var ae *apiError
	if !errors.As(err, &ae) {
		t.Fatalf("want *apiError, got %T: %v", err, err)
	}
	if ae.Message != "Invalid credentials" {
		t.Errorf("Message = %q", ae.Message)
	}
	if got := friendlyMessage("login", err); got != "Incorrect username or password" {
		t.Errorf("friendlyMessage = %q", got)
	}
}

func TestRefreshFailureEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token/refresh/" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "Refresh token expired"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Token is invalid"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sess := &Session{Access: "stale", Refresh: "dead"}

	err := client.JoinEvent(context.Background(), sess, 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
}

func TestNoRefreshTokenEndsSession(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token/refresh/" {
			refreshCalls++
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.JoinEvent(context.Background(), &Session{Access: "stale"}, 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if refreshCalls != 0 {
		t.Error("must not hit the refresh endpoint without a refresh token")
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "Event is at full capacity"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.JoinEvent(context.Background(), &Session{Access: "tok", Refresh: "r"}, 1)

	var ae *apiError
	if !errors.As(err, &ae) {
		t.Fatalf("want *apiError, got %T: %v", err, err)
	}
	if ae.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", ae.Status)
	}
	if ae.Message != "Event is at full capacity" {
		t.Errorf("Message = %q", ae.Message)
	}
}

func TestLoginBuildsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{
			"tokens": {"access": "a-token", "refresh": "r-token"},
			"user": {"id": 3, "username": "alice", "email": "alice@example.com"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sess, err := client.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Access != "a-token" || sess.Refresh != "r-token" {
		t.Errorf("tokens = %q / %q", sess.Access, sess.Refresh)
	}
	if sess.User.ID != 3 || sess.User.Username != "alice" {
		t.Errorf("user = %+v", sess.User)
	}
}

func TestListEventsDecodesBothShapes(t *testing.T) {
	plain := `[{"id": 1, "title": "Picnic"}, {"id": 2, "title": "Run"}]`
	paginated := `{"results": [{"id": 5, "title": "Standup Night"}]}`

	events, err := decodeEventList([]byte(plain))
	if err != nil {
		t.Fatalf("plain array: %v", err)
	}
	if len(events) != 2 || events[0].Title != "Picnic" {
		t.Errorf("plain array = %+v", events)
	}

	events, err = decodeEventList([]byte(paginated))
	if err != nil {
		t.Fatalf("paginated: %v", err)
	}
	if len(events) != 1 || events[0].ID != 5 {
		t.Errorf("paginated = %+v", events)
	}

	if _, err := decodeEventList([]byte(`"nope"`)); err == nil {
		t.Error("expected error for a non-list body")
	}
}

func TestFriendEndpointsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/friends/":
			w.Write([]byte(`{"friends": [{"id": 2, "username": "bob"}]}`))
		case "/accounts/friend-requests/pending/":
			w.Write([]byte(`{"pending_requests": [{"id": 9, "from_user": {"id": 4, "username": "carol"}}]}`))
		case "/accounts/users/available":
			if r.URL.Query().Get("search") != "da" {
				t.Errorf("search param = %q", r.URL.Query().Get("search"))
			}
			w.Write([]byte(`{"users": [{"id": 5, "username": "dave"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	sess := &Session{Access: "tok"}
	ctx := context.Background()

	friends, err := client.ListFriends(ctx, sess)
	if err != nil || len(friends) != 1 || friends[0].Username != "bob" {
		t.Errorf("ListFriends = %+v, err %v", friends, err)
	}

	pending, err := client.PendingRequests(ctx, sess)
	if err != nil || len(pending) != 1 || pending[0].FromUser.Username != "carol" {
		t.Errorf("PendingRequests = %+v, err %v", pending, err)
	}

	users, err := client.AvailableUsers(ctx, sess, "da")
	if err != nil || len(users) != 1 || users[0].Username != "dave" {
		t.Errorf("AvailableUsers = %+v, err %v", users, err)
	}
}
