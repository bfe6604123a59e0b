package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ========================
// AUTH PAGES
// ========================

type authPageData struct {
	Error    string
	Username string
	Email    string
}

func LoginPage(c *gin.Context) {
	if CurrentSession(c) != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", authPageData{})
}

func LoginSubmit(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	if username == "" || password == "" {
		c.HTML(http.StatusBadRequest, "login.html", authPageData{
			Error:    "Please enter both username and password",
			Username: username,
		})
		return
	}

	sess, err := API.Login(c.Request.Context(), username, password)
	if err != nil {
		c.HTML(http.StatusUnauthorized, "login.html", authPageData{
			Error:    friendlyMessage("login", err),
			Username: username,
		})
		return
	}

	if err := SaveSession(c, sess); err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", authPageData{
			Error:    "Could not store your session. Please try again.",
			Username: username,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func RegisterPage(c *gin.Context) {
	if CurrentSession(c) != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "register.html", authPageData{})
}

func RegisterSubmit(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	password2 := c.PostForm("password2")

	data := authPageData{Username: username, Email: email}

	if username == "" || email == "" || password == "" {
		data.Error = "Please provide username, email, and password"
		c.HTML(http.StatusBadRequest, "register.html", data)
		return
	}
	// The server validates too, but there is no point round-tripping an
	// obvious mismatch.
	if password != password2 {
		data.Error = "Passwords do not match"
		c.HTML(http.StatusBadRequest, "register.html", data)
		return
	}

	sess, err := API.Register(c.Request.Context(), username, email, password, password2)
	if err != nil {
		data.Error = friendlyMessage("register", err)
		c.HTML(http.StatusBadRequest, "register.html", data)
		return
	}

	if err := SaveSession(c, sess); err != nil {
		data.Error = "Could not store your session. Please try again."
		c.HTML(http.StatusInternalServerError, "register.html", data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func Logout(c *gin.Context) {
	ClearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// sessionExpired is the shared fatal-401 path: wipe the stored session and
// force the login page. Returns true when it handled the error.
func sessionExpired(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if err == ErrSessionExpired {
		ClearSession(c)
		c.Redirect(http.StatusSeeOther, "/login")
		return true
	}
	return false
}
