package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine) {

	r.Use(SessionMiddleware())

	// Home / map
	r.GET("/", HomePage)
	r.POST("/events", CreateEventSubmit)

	// Auth pages
	r.GET("/login", LoginPage)
	r.POST("/login", LoginSubmit)
	r.GET("/register", RegisterPage)
	r.POST("/register", RegisterSubmit)
	r.POST("/logout", Logout)

	// Event detail + actions
	r.GET("/events/:id", EventPage)
	r.POST("/events/:id/join", JoinEventAction)
	r.POST("/events/:id/leave", LeaveEventAction)
	r.POST("/events/:id/kick", KickAttendeeAction)
	r.POST("/events/:id/cancel", CancelEventAction)
	r.POST("/events/:id/delete", DeleteEventAction)
	r.POST("/events/:id/edit", EditEventSubmit)

	// Friends
	r.GET("/friends", FriendsPage)
	r.POST("/friends/request", SendFriendRequestAction)
	r.POST("/friends/requests/:id/accept", AcceptRequestAction)
	r.POST("/friends/requests/:id/reject", RejectRequestAction)
	r.POST("/friends/:id/remove", RemoveFriendAction)

	// Catch-all redirect to the map
	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})
}

// NewRouter builds the engine with templates and routes. Kept separate from
// main so tests can spin up the full app against a fake API.
func NewRouter() *gin.Engine {
	r := gin.Default()
	r.SetFuncMap(templateFuncs())
	r.LoadHTMLGlob("templates/*.html")
	SetupRoutes(r)
	return r
}
