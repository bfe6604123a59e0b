package main

import "encoding/json"

// User is the profile shape the API returns on login/register and inside
// friend lists. Bio is only populated by the accounts endpoints.
type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Bio      string `json:"bio,omitempty"`
}

// Session is what we persist in the sealed cookie: the JWT pair plus the
// cached profile. Refreshed is set by the API client when the access token
// was silently renewed, so the handler knows to re-save the cookie.
type Session struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`

	Refreshed bool `json:"-"`
}

type Attendee struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Event mirrors the server resource. Capacity, Lat and Lng are pointers
// because the API may omit them; an event without coordinates still shows in
// the list but gets no map pin, and an event without capacity is never full.
type Event struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      *uint      `json:"category"`
	CategoryName  string     `json:"category_name"`
	HostID        uint       `json:"host_id"`
	HostName      string     `json:"host_name"`
	AttendeeCount int        `json:"attendee_count"`
	Capacity      *int       `json:"capacity"`
	IsJoined      bool       `json:"is_joined"`
	IsPublic      bool       `json:"is_public"`
	IsCancelled   bool       `json:"is_cancelled"`
	Lat           *float64   `json:"lat"`
	Lng           *float64   `json:"lng"`
	LocationName  string     `json:"location_name"`
	Address       string     `json:"address"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	Attendees     []Attendee `json:"attendees,omitempty"`
}

// HasLocation reports whether the event can be pinned on the map. Value
// receiver so the method is reachable from embedded copies in view models.
func (e Event) HasLocation() bool {
	return e.Lat != nil && e.Lng != nil
}

// IsFull is advisory only; the server re-checks capacity on join.
func (e Event) IsFull() bool {
	return e.Capacity != nil && e.AttendeeCount >= *e.Capacity
}

type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type FriendRequest struct {
	ID       uint `json:"id"`
	FromUser User `json:"from_user"`
}

// EventForm is the body for POST /events/ and PATCH /events/{id}/.
type EventForm struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Category     *uint   `json:"category,omitempty"`
	StartTime    string  `json:"start_time,omitempty"`
	EndTime      string  `json:"end_time,omitempty"`
	LocationName string  `json:"location_name"`
	Address      string  `json:"address"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Capacity     int     `json:"capacity"`
	IsPublic     bool    `json:"is_public"`
}

// authResponse is the shape of /auth/login/ and /auth/register/ responses.
type authResponse struct {
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User User `json:"user"`
}

// decodeEventList accepts both a bare JSON array and the paginated
// {"results": [...]} wrapper, since the API has returned both shapes.
func decodeEventList(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}
	var wrapped struct {
		Results []Event `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Results, nil
}
