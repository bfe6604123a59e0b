package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// API is the shared client for the ShoutMe backend, set up once in main.
var API *Client

// ErrSessionExpired means the access token was rejected and could not be
// refreshed. Handlers clear the cookie and send the user to /login.
var ErrSessionExpired = errors.New("session expired")

// Client wraps every REST call the pages make. All calls go through the same
// path: Bearer header when signed in, a silent token refresh when the access
// token is stale or rejected, and typed error bodies on everything else. No
// other retry, no backoff.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// InitAPI wires the package-wide client from the environment.
func InitAPI() {
	API = NewClient(apiBase())
	log.Println("🌐 ShoutMe API at", API.base)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// refreshAccess exchanges the refresh token for a new access token.
func (c *Client) refreshAccess(ctx context.Context, refresh string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"refresh": refresh})
	status, data, err := c.send(ctx, http.MethodPost, "/auth/token/refresh/", payload, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("refresh rejected (%d)", status)
	}
	var out struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.Access == "" {
		return "", errors.New("refresh response missing access token")
	}
	return out.Access, nil
}

// do runs one request under the authenticated-request contract. An access
// token that already reads as expired is refreshed before the request goes
// out; otherwise a 401 on a signed-in call gets exactly one refresh-and-retry.
// Either way the session is marked Refreshed so the handler re-saves the
// cookie. A signed-in 401 with no way back returns ErrSessionExpired. Any
// other non-2xx, including a 401 on an unauthenticated call like login,
// becomes an *apiError carrying the response body.
func (c *Client) do(ctx context.Context, method, path string, reqBody any, sess *Session) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
	}

	refreshed := false
	if sess != nil && sess.Refresh != "" && tokenExpired(sess.Access) {
		// Refresh failures are left for the 401 path to deal with.
		if access, err := c.refreshAccess(ctx, sess.Refresh); err == nil {
			sess.Access = access
			sess.Refreshed = true
			refreshed = true
		}
	}

	token := ""
	if sess != nil {
		token = sess.Access
	}

	status, data, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && sess != nil {
		if refreshed || sess.Refresh == "" {
			return nil, ErrSessionExpired
		}
		access, err := c.refreshAccess(ctx, sess.Refresh)
		if err != nil {
			return nil, ErrSessionExpired
		}
		sess.Access = access
		sess.Refreshed = true
		status, data, err = c.send(ctx, method, path, payload, access)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, ErrSessionExpired
		}
	}

	if status < 200 || status > 299 {
		return nil, parseAPIError(status, data)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, sess *Session, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, sess)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// -----------------------------
// Auth
// -----------------------------

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{"username": username, "password": password}
	data, err := c.do(ctx, http.MethodPost, "/auth/login/", body, nil)
	if err != nil {
		return nil, err
	}
	return sessionFromAuth(data)
}

func (c *Client) Register(ctx context.Context, username, email, password, password2 string) (*Session, error) {
	body := map[string]string{
		"username":  username,
		"email":     email,
		"password":  password,
		"password2": password2,
	}
	data, err := c.do(ctx, http.MethodPost, "/auth/register/", body, nil)
	if err != nil {
		return nil, err
	}
	return sessionFromAuth(data)
}

func sessionFromAuth(data []byte) (*Session, error) {
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens.Access == "" || resp.Tokens.Refresh == "" {
		return nil, errors.New("auth response missing tokens")
	}
	return &Session{
		Access:  resp.Tokens.Access,
		Refresh: resp.Tokens.Refresh,
		User:    resp.User,
	}, nil
}

// -----------------------------
// Events
// -----------------------------

func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	data, err := c.do(ctx, http.MethodGet, "/events/", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeEventList(data)
}

// GetEvent passes the auth header when a session exists, which is what makes
// the server fill in is_joined.
func (c *Client) GetEvent(ctx context.Context, id uint, sess *Session) (*Event, error) {
	var ev Event
	if err := c.getJSON(ctx, fmt.Sprintf("/events/%d/", id), sess, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) CreateEvent(ctx context.Context, sess *Session, form *EventForm) error {
	_, err := c.do(ctx, http.MethodPost, "/events/", form, sess)
	return err
}

func (c *Client) UpdateEvent(ctx context.Context, sess *Session, id uint, form *EventForm) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/events/%d/", id), form, sess)
	return err
}

func (c *Client) DeleteEvent(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/events/%d/", id), nil, sess)
	return err
}

func (c *Client) JoinEvent(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/join/", id), nil, sess)
	return err
}

func (c *Client) LeaveEvent(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/leave/", id), nil, sess)
	return err
}

func (c *Client) CancelEvent(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/cancel/", id), nil, sess)
	return err
}

func (c *Client) KickAttendee(ctx context.Context, sess *Session, id, userID uint) error {
	body := map[string]uint{"user_id": userID}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/kick/", id), body, sess)
	return err
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.getJSON(ctx, "/categories/", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// -----------------------------
// Friends
// -----------------------------

func (c *Client) ListFriends(ctx context.Context, sess *Session) ([]User, error) {
	var out struct {
		Friends []User `json:"friends"`
	}
	if err := c.getJSON(ctx, "/accounts/friends/", sess, &out); err != nil {
		return nil, err
	}
	return out.Friends, nil
}

func (c *Client) PendingRequests(ctx context.Context, sess *Session) ([]FriendRequest, error) {
	var out struct {
		PendingRequests []FriendRequest `json:"pending_requests"`
	}
	if err := c.getJSON(ctx, "/accounts/friend-requests/pending/", sess, &out); err != nil {
		return nil, err
	}
	return out.PendingRequests, nil
}

func (c *Client) AvailableUsers(ctx context.Context, sess *Session, search string) ([]User, error) {
	path := "/accounts/users/available"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.getJSON(ctx, path, sess, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) SendFriendRequest(ctx context.Context, sess *Session, toUserID uint) error {
	body := map[string]uint{"to_user_id": toUserID}
	_, err := c.do(ctx, http.MethodPost, "/accounts/friend-request/send/", body, sess)
	return err
}

func (c *Client) AcceptFriendRequest(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/friend-request/%d/accept/", id), nil, sess)
	return err
}

func (c *Client) RejectFriendRequest(ctx context.Context, sess *Session, id uint) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/friend-request/%d/reject/", id), nil, sess)
	return err
}

func (c *Client) RemoveFriend(ctx context.Context, sess *Session, friendID uint) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/accounts/friend/%d/", friendID), nil, sess)
	return err
}
