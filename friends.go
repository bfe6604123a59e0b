package main

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ========================
// FRIENDS PAGE
// ========================

type friendsData struct {
	Session   *Session
	Path      string
	Tab       string
	Friends   []User
	Pending   []FriendRequest
	Available []User
	Search    string
	Error     string
	Success   string

	// Set when the user clicked Remove and still has to confirm.
	ConfirmRemove *User
}

var friendsSuccessMessages = map[string]string{
	"sent":     "Friend request sent!",
	"accepted": "Friend request accepted!",
	"rejected": "Friend request rejected",
	"removed":  "Friend removed",
}

func FriendsPage(c *gin.Context) {
	renderFriends(c, http.StatusOK, "")
}

func renderFriends(c *gin.Context, status int, actionError string) {
	sess := CurrentSession(c)
	if sess == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	ctx := c.Request.Context()

	tab := c.DefaultQuery("tab", "friends")
	if tab != "friends" && tab != "requests" && tab != "add" {
		tab = "friends"
	}

	data := friendsData{
		Session: sess,
		Path:    "/friends",
		Tab:     tab,
		Search:  c.Query("search"),
		Error:   actionError,
	}
	if msg, ok := friendsSuccessMessages[c.Query("msg")]; ok && actionError == "" {
		data.Success = msg
	}

	// Friends and pending are always fetched so the tab badges have counts;
	// the available-users search only runs on its own tab.
	friends, err := API.ListFriends(ctx, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		log.Println("friends fetch failed:", err)
		if data.Error == "" {
			data.Error = "Failed to fetch friends"
		}
	}
	data.Friends = friends

	pending, err := API.PendingRequests(ctx, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		log.Println("pending requests fetch failed:", err)
		if data.Error == "" {
			data.Error = "Failed to fetch pending requests"
		}
	}
	data.Pending = pending

	if tab == "add" {
		users, err := API.AvailableUsers(ctx, sess, data.Search)
		if sessionExpired(c, err) {
			return
		}
		if err != nil {
			log.Println("available users fetch failed:", err)
			if data.Error == "" {
				data.Error = "Failed to fetch available users"
			}
		}
		data.Available = users
	}

	if raw := c.Query("confirm"); raw != "" && tab == "friends" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			for i := range data.Friends {
				if data.Friends[i].ID == uint(id) {
					data.ConfirmRemove = &data.Friends[i]
					break
				}
			}
		}
	}

	// Any of the fetches above may have refreshed the access token.
	persistSession(c, sess)

	c.HTML(status, "friends.html", data)
}

func SendFriendRequestAction(c *gin.Context) {
	sess := CurrentSession(c)
	if sess == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	toUserID, err := strconv.ParseUint(c.PostForm("to_user_id"), 10, 32)
	if err != nil {
		renderFriends(c, http.StatusBadRequest, "Failed to send request")
		return
	}

	err = API.SendFriendRequest(c.Request.Context(), sess, uint(toUserID))
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderFriends(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/friends?tab=add&msg=sent")
}

func AcceptRequestAction(c *gin.Context) {
	friendRequestAction(c, "accepted", API.AcceptFriendRequest)
}

func RejectRequestAction(c *gin.Context) {
	friendRequestAction(c, "rejected", API.RejectFriendRequest)
}

func friendRequestAction(c *gin.Context, msg string, call func(ctx context.Context, sess *Session, id uint) error) {
	sess := CurrentSession(c)
	if sess == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		renderFriends(c, http.StatusBadRequest, "Unknown friend request")
		return
	}

	err = call(c.Request.Context(), sess, uint(id))
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderFriends(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/friends?tab=requests&msg="+msg)
}

func RemoveFriendAction(c *gin.Context) {
	sess := CurrentSession(c)
	if sess == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		renderFriends(c, http.StatusBadRequest, "Unknown friend")
		return
	}

	err = API.RemoveFriend(c.Request.Context(), sess, uint(id))
	persistSession(c, sess)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		renderFriends(c, http.StatusBadRequest, friendlyMessage("", err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/friends?msg=removed")
}
