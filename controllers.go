package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// -----------------------------
// Category visuals
// -----------------------------

// Pin colors and emojis keyed by category name. Unknown categories fall back
// to "Other".
var categoryColors = map[string]string{
	"Music":   "#f97316",
	"Food":    "#22c55e",
	"Comedy":  "#a855f7",
	"Fitness": "#06b6d4",
	"Biz":     "#f59e0b",
	"Film":    "#ec4899",
	"Art":     "#8b5cf6",
	"Other":   "#64748b",
}

var categoryEmojis = map[string]string{
	"Music":   "🎵",
	"Food":    "🍔",
	"Comedy":  "🎤",
	"Fitness": "🏃",
	"Biz":     "💼",
	"Film":    "🎬",
	"Art":     "🎨",
	"Other":   "📍",
}

func catColor(name string) string {
	if c, ok := categoryColors[name]; ok {
		return c
	}
	return categoryColors["Other"]
}

func catEmoji(name string) string {
	if e, ok := categoryEmojis[name]; ok {
		return e
	}
	return categoryEmojis["Other"]
}

// categoryLabel resolves the display name for an event. The id is canonical;
// category_name is just the derived label the server sends along.
func categoryLabel(ev *Event, cats []Category) string {
	if ev.CategoryName != "" {
		return ev.CategoryName
	}
	if ev.Category != nil {
		for _, cat := range cats {
			if cat.ID == *ev.Category {
				return cat.Name
			}
		}
	}
	return "Other"
}

// -----------------------------
// Category filter
// -----------------------------

// parseSelectedCats turns repeated ?cat= query values into the selected id
// set. Junk values are ignored.
func parseSelectedCats(values []string) map[uint]bool {
	selected := make(map[uint]bool)
	for _, v := range values {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			continue
		}
		selected[uint(id)] = true
	}
	return selected
}

// toggleCats returns the selected set with one id flipped. Pure; the caller
// builds a URL from it.
func toggleCats(selected map[uint]bool, id uint) map[uint]bool {
	next := make(map[uint]bool, len(selected)+1)
	for k := range selected {
		next[k] = true
	}
	if next[id] {
		delete(next, id)
	} else {
		next[id] = true
	}
	return next
}

func catsQuery(selected map[uint]bool) string {
	if len(selected) == 0 {
		return "/"
	}
	ids := make([]int, 0, len(selected))
	for id := range selected {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "cat="+strconv.Itoa(id))
	}
	return "/?" + strings.Join(parts, "&")
}

// filterEvents keeps the events whose category id is selected, or whose
// resolved name matches a selected category. Empty selection means show all.
func filterEvents(events []Event, selected map[uint]bool, cats []Category) []Event {
	if len(selected) == 0 {
		return events
	}
	selectedNames := make(map[string]bool, len(selected))
	for _, cat := range cats {
		if selected[cat.ID] {
			selectedNames[cat.Name] = true
		}
	}
	var out []Event
	for _, ev := range events {
		if ev.Category != nil && selected[*ev.Category] {
			out = append(out, ev)
			continue
		}
		if ev.CategoryName != "" && selectedNames[ev.CategoryName] {
			out = append(out, ev)
		}
	}
	return out
}

// -----------------------------
// Home / map page
// -----------------------------

type categoryChip struct {
	ID        uint
	Name      string
	Emoji     string
	Color     string
	Selected  bool
	ToggleURL string
}

type eventItem struct {
	Event
	Label string
	Color string
	Emoji string
}

// LocationLabel is what the list shows under the title.
func (e eventItem) LocationLabel() string {
	if e.LocationName != "" {
		return e.LocationName
	}
	return "See map"
}

type createFormData struct {
	Title        string
	Description  string
	Category     string
	StartTime    string
	EndTime      string
	LocationName string
	Address      string
	Capacity     string
	IsPublic     bool
	Lat          string
	Lng          string
}

func defaultCreateForm(cats []Category) createFormData {
	form := createFormData{Capacity: "50", IsPublic: true}
	for _, cat := range cats {
		if cat.Name == "Other" {
			form.Category = strconv.FormatUint(uint64(cat.ID), 10)
			break
		}
	}
	return form
}

type mapPin struct {
	ID           uint    `json:"id"`
	Title        string  `json:"title"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Color        string  `json:"color"`
	Category     string  `json:"category"`
	LocationName string  `json:"location_name,omitempty"`
	StartTime    string  `json:"start_time,omitempty"`
	Capacity     *int    `json:"capacity,omitempty"`
	Description  string  `json:"description,omitempty"`
}

type homeData struct {
	Session     *Session
	Path        string
	LoadError   string
	Events      []eventItem
	Chips       []categoryChip
	Panel       string
	Create      createFormData
	CreateError string
	PinsJSON    template.JS
	ClearURL    string
	Filtered    bool
}

func HomePage(c *gin.Context) {
	renderHome(c, http.StatusOK, "", nil)
}

func renderHome(c *gin.Context, status int, createError string, form *createFormData) {
	ctx := c.Request.Context()
	data := homeData{
		Session:     CurrentSession(c),
		Path:        "/",
		Panel:       c.DefaultQuery("panel", "events"),
		CreateError: createError,
		ClearURL:    "/",
	}

	events, err := API.ListEvents(ctx)
	if err != nil {
		log.Println("events fetch failed:", err)
		data.LoadError = friendlyMessage("", err)
	}

	cats, err := API.ListCategories(ctx)
	if err != nil {
		// Filtering and the category selector degrade; the list still works.
		log.Println("categories fetch failed:", err)
	}

	selected := parseSelectedCats(c.QueryArray("cat"))
	data.Filtered = len(selected) > 0
	for _, cat := range cats {
		data.Chips = append(data.Chips, categoryChip{
			ID:        cat.ID,
			Name:      cat.Name,
			Emoji:     catEmoji(cat.Name),
			Color:     catColor(cat.Name),
			Selected:  selected[cat.ID],
			ToggleURL: catsQuery(toggleCats(selected, cat.ID)),
		})
	}

	visible := filterEvents(events, selected, cats)
	pins := make([]mapPin, 0, len(visible))
	for i := range visible {
		ev := &visible[i]
		label := categoryLabel(ev, cats)
		data.Events = append(data.Events, eventItem{
			Event: *ev,
			Label: label,
			Color: catColor(label),
			Emoji: catEmoji(label),
		})
		if ev.HasLocation() {
			desc := ev.Description
			if len(desc) > 120 {
				desc = desc[:120] + "…"
			}
			pins = append(pins, mapPin{
				ID:           ev.ID,
				Title:        ev.Title,
				Lat:          *ev.Lat,
				Lng:          *ev.Lng,
				Color:        catColor(label),
				Category:     label,
				LocationName: ev.LocationName,
				StartTime:    ev.StartTime,
				Capacity:     ev.Capacity,
				Description:  desc,
			})
		}
	}
	if raw, err := json.Marshal(pins); err == nil {
		data.PinsJSON = template.JS(raw)
	} else {
		data.PinsJSON = template.JS("[]")
	}

	if form != nil {
		data.Create = *form
		data.Panel = "create"
	} else {
		data.Create = defaultCreateForm(cats)
	}

	c.HTML(status, "home.html", data)
}

func CreateEventSubmit(c *gin.Context) {
	form := createFormData{
		Title:        strings.TrimSpace(c.PostForm("title")),
		Description:  c.PostForm("description"),
		Category:     c.PostForm("category"),
		StartTime:    strings.TrimSpace(c.PostForm("start_time")),
		EndTime:      strings.TrimSpace(c.PostForm("end_time")),
		LocationName: c.PostForm("location_name"),
		Address:      c.PostForm("address"),
		Capacity:     c.PostForm("capacity"),
		IsPublic:     c.PostForm("is_public") != "",
		Lat:          c.PostForm("lat"),
		Lng:          c.PostForm("lng"),
	}

	sess := CurrentSession(c)
	if sess == nil {
		renderHome(c, http.StatusUnauthorized, "You must be signed in to create an event.", &form)
		return
	}

	lat, latErr := strconv.ParseFloat(form.Lat, 64)
	lng, lngErr := strconv.ParseFloat(form.Lng, 64)
	if latErr != nil || lngErr != nil {
		renderHome(c, http.StatusBadRequest, "Click the map to drop a pin first.", &form)
		return
	}

	capacity := 50
	if form.Capacity != "" {
		n, err := strconv.Atoi(form.Capacity)
		if err != nil || n < 1 {
			renderHome(c, http.StatusBadRequest, "Capacity must be a positive number.", &form)
			return
		}
		capacity = n
	}

	body := EventForm{
		Title:        form.Title,
		Description:  form.Description,
		StartTime:    form.StartTime,
		EndTime:      form.EndTime,
		LocationName: form.LocationName,
		Address:      form.Address,
		Lat:          lat,
		Lng:          lng,
		Capacity:     capacity,
		IsPublic:     form.IsPublic,
	}
	if form.Category != "" {
		if id, err := strconv.ParseUint(form.Category, 10, 32); err == nil {
			cid := uint(id)
			body.Category = &cid
		}
	}

	err := API.CreateEvent(c.Request.Context(), sess, &body)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderHome(c, http.StatusBadRequest, friendlyMessage("", err), &form)
		return
	}

	// Refetch-on-write: the redirect's GET shows the fresh list.
	c.Redirect(http.StatusSeeOther, "/")
}

// -----------------------------
// Event detail page
// -----------------------------

// eventView holds the role gating for the detail page, recomputed from
// fetched state on every render. Advisory only; the server is authoritative.
type eventView struct {
	Event    *Event
	Label    string
	Color    string
	Emoji    string
	SignedIn bool
	IsHost   bool
	IsJoined bool
	IsFull   bool
}

func computeEventView(ev *Event, user *User) *eventView {
	v := &eventView{
		Event:    ev,
		SignedIn: user != nil,
		IsFull:   ev.IsFull(),
	}
	if user != nil {
		v.IsHost = ev.HostID == user.ID
		v.IsJoined = ev.IsJoined
	}
	return v
}

// CanJoin mirrors the join button's enabled state.
func (v *eventView) CanJoin() bool {
	return v.SignedIn && !v.IsHost && !v.IsJoined && !v.IsFull && !v.Event.IsCancelled
}

type eventPageData struct {
	Session       *Session
	Path          string
	NotFound      bool
	LoadError     string
	View          *eventView
	ActionError   string
	ActionSuccess string
	EditMode      bool
	ConfirmDelete bool
	Categories    []Category
	Edit          createFormData
	PinJSON       template.JS
}

var eventSuccessMessages = map[string]string{
	"joined":    "Successfully joined the event!",
	"left":      "You have left the event.",
	"updated":   "Event updated.",
	"cancelled": "Event cancelled.",
	"kicked":    "Attendee removed.",
}

func eventID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func EventPage(c *gin.Context) {
	renderEvent(c, http.StatusOK, "")
}

func renderEvent(c *gin.Context, status int, actionError string) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}

	sess := CurrentSession(c)
	data := eventPageData{
		Session:     sess,
		Path:        c.Request.URL.Path,
		ActionError: actionError,
	}
	if msg, ok := eventSuccessMessages[c.Query("msg")]; ok && actionError == "" {
		data.ActionSuccess = msg
	}

	ev, err := API.GetEvent(c.Request.Context(), id, sess)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			data.NotFound = true
			c.HTML(http.StatusNotFound, "event.html", data)
			return
		}
		data.LoadError = friendlyMessage("", err)
		c.HTML(http.StatusBadGateway, "event.html", data)
		return
	}

	var user *User
	if sess != nil {
		user = &sess.User
	}
	view := computeEventView(ev, user)
	cats, _ := API.ListCategories(c.Request.Context())
	view.Label = categoryLabel(ev, cats)
	view.Color = catColor(view.Label)
	view.Emoji = catEmoji(view.Label)
	data.View = view

	if view.IsHost {
		data.EditMode = c.Query("edit") == "1"
		data.ConfirmDelete = c.Query("confirm") == "delete"
	}
	if data.EditMode {
		data.Categories = cats
		data.Edit = editFormFromEvent(ev)
	}

	if ev.HasLocation() {
		pin := mapPin{
			ID:           ev.ID,
			Title:        ev.Title,
			Lat:          *ev.Lat,
			Lng:          *ev.Lng,
			Color:        view.Color,
			Category:     view.Label,
			LocationName: ev.LocationName,
		}
		if raw, err := json.Marshal(pin); err == nil {
			data.PinJSON = template.JS(raw)
		}
	}

	c.HTML(status, "event.html", data)
}

func editFormFromEvent(ev *Event) createFormData {
	form := createFormData{
		Title:        ev.Title,
		Description:  ev.Description,
		StartTime:    ev.StartTime,
		EndTime:      ev.EndTime,
		LocationName: ev.LocationName,
		Address:      ev.Address,
		IsPublic:     ev.IsPublic,
	}
	if ev.Category != nil {
		form.Category = strconv.FormatUint(uint64(*ev.Category), 10)
	}
	if ev.Capacity != nil {
		form.Capacity = strconv.Itoa(*ev.Capacity)
	}
	if ev.HasLocation() {
		form.Lat = strconv.FormatFloat(*ev.Lat, 'f', -1, 64)
		form.Lng = strconv.FormatFloat(*ev.Lng, 'f', -1, 64)
	}
	return form
}

func redirectEvent(c *gin.Context, id uint, msg string) {
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/events/%d?msg=%s", id, msg))
}

func JoinEventAction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in to join events.")
		return
	}

	// Advisory pre-checks against fresh state; the server re-validates all of
	// them anyway.
	ev, err := API.GetEvent(c.Request.Context(), id, sess)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadGateway, friendlyMessage("", err))
		return
	}
	switch {
	case ev.HostID == sess.User.ID:
		renderEvent(c, http.StatusBadRequest, "Hosts cannot join their own events.")
		return
	case ev.IsCancelled:
		renderEvent(c, http.StatusBadRequest, "This event has been cancelled.")
		return
	case ev.IsJoined:
		renderEvent(c, http.StatusBadRequest, "You have already joined this event.")
		return
	case ev.IsFull():
		renderEvent(c, http.StatusBadRequest, "This event is at full capacity.")
		return
	}

	err = API.JoinEvent(c.Request.Context(), sess, id)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	redirectEvent(c, id, "joined")
}

func LeaveEventAction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in.")
		return
	}

	err := API.LeaveEvent(c.Request.Context(), sess, id)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	redirectEvent(c, id, "left")
}

func KickAttendeeAction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in.")
		return
	}
	userID, err := strconv.ParseUint(c.PostForm("user_id"), 10, 32)
	if err != nil {
		renderEvent(c, http.StatusBadRequest, "Unknown attendee.")
		return
	}

	err = API.KickAttendee(c.Request.Context(), sess, id, uint(userID))
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	redirectEvent(c, id, "kicked")
}

func CancelEventAction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in.")
		return
	}

	err := API.CancelEvent(c.Request.Context(), sess, id)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	redirectEvent(c, id, "cancelled")
}

func DeleteEventAction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in.")
		return
	}

	err := API.DeleteEvent(c.Request.Context(), sess, id)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func EditEventSubmit(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	sess := CurrentSession(c)
	if sess == nil {
		renderEvent(c, http.StatusUnauthorized, "You must be signed in.")
		return
	}

	body := EventForm{
		Title:        strings.TrimSpace(c.PostForm("title")),
		Description:  c.PostForm("description"),
		StartTime:    strings.TrimSpace(c.PostForm("start_time")),
		EndTime:      strings.TrimSpace(c.PostForm("end_time")),
		LocationName: c.PostForm("location_name"),
		Address:      c.PostForm("address"),
		IsPublic:     c.PostForm("is_public") != "",
	}
	if lat, err := strconv.ParseFloat(c.PostForm("lat"), 64); err == nil {
		body.Lat = lat
	}
	if lng, err := strconv.ParseFloat(c.PostForm("lng"), 64); err == nil {
		body.Lng = lng
	}
	if n, err := strconv.Atoi(c.PostForm("capacity")); err == nil && n > 0 {
		body.Capacity = n
	}
	if raw := c.PostForm("category"); raw != "" {
		if cid64, err := strconv.ParseUint(raw, 10, 32); err == nil {
			cid := uint(cid64)
			body.Category = &cid
		}
	}

	err := API.UpdateEvent(c.Request.Context(), sess, id, &body)
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderEvent(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	redirectEvent(c, id, "updated")
}

// -----------------------------
// Template helpers
// -----------------------------

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"datetime": func(raw string) string {
			if raw == "" {
				return ""
			}
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t.Format("Mon, Jan 2 2006 · 15:04")
			}
			return raw
		},
	}
}
