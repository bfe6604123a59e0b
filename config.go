package main

import (
	"os"
	"strings"
)

// apiBase resolves the ShoutMe API origin.
//
// SHOUTME_API_URL is used when set (trailing slashes stripped so path joins
// stay predictable). When it is absent we fall back to the local dev backend.
func apiBase() string {
	envURL := strings.TrimSpace(os.Getenv("SHOUTME_API_URL"))
	if envURL != "" {
		return strings.TrimRight(envURL, "/")
	}
	return "http://127.0.0.1:8000/api"
}

// listenAddr returns the address the web client binds to.
func listenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":3000"
}
