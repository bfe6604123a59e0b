package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// apiError is the typed shape of a non-2xx API response body. The backend
// answers with {"error": "..."}, {"detail": "..."} or per-field validation
// arrays like {"username": ["This username is already taken"]}; anything else
// lands in Raw.
type apiError struct {
	Status  int
	Message string
	Detail  string
	Fields  map[string][]string
	Raw     string
}

func (e *apiError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	case len(e.Fields) > 0:
		return e.fieldMessages()
	case e.Raw != "":
		return e.Raw
	}
	return fmt.Sprintf("api error %d", e.Status)
}

func parseAPIError(status int, body []byte) *apiError {
	ae := &apiError{Status: status}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		ae.Raw = strings.TrimSpace(string(body))
		return ae
	}

	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			switch key {
			case "error":
				ae.Message = v
			case "detail":
				ae.Detail = v
			default:
				if ae.Fields == nil {
					ae.Fields = map[string][]string{}
				}
				ae.Fields[key] = []string{v}
			}
		case []any:
			var msgs []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					msgs = append(msgs, s)
				}
			}
			if len(msgs) > 0 {
				if ae.Fields == nil {
					ae.Fields = map[string][]string{}
				}
				ae.Fields[key] = msgs
			}
		}
	}
	return ae
}

// fieldMessages joins per-field validation errors in a stable order, the same
// "field: message · field: message" shape the pages show inline.
func (e *apiError) fieldMessages() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return strings.Join(parts, " · ")
}

// friendlyMessage maps an API failure to the text shown in the inline banner.
// op selects the page-specific rewrites; anything unmatched falls through to
// the raw server message so real errors are never swallowed.
func friendlyMessage(op string, err error) string {
	var ae *apiError
	if !errors.As(err, &ae) {
		switch op {
		case "login":
			return "Unable to sign in. Please check your credentials."
		case "register":
			return "Registration failed. Please try again."
		}
		return "Something went wrong. Please try again."
	}

	switch op {
	case "login":
		if ae.Message != "" {
			switch {
			case strings.Contains(ae.Message, "Invalid") || strings.Contains(ae.Message, "password"):
				return "Incorrect username or password"
			case strings.Contains(ae.Message, "provide"):
				return "Please enter both username and password"
			}
			return ae.Message
		}
		if ae.Detail != "" {
			return ae.Detail
		}
		return "Unable to sign in. Please check your credentials."

	case "register":
		if msg := ae.fieldMessages(); msg != "" {
			return msg
		}
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Detail != "" {
			return ae.Detail
		}
		return "Registration failed. Please try again."
	}

	if ae.Detail != "" {
		return ae.Detail
	}
	if ae.Message != "" {
		return ae.Message
	}
	if msg := ae.fieldMessages(); msg != "" {
		return msg
	}
	if ae.Raw != "" {
		return ae.Raw
	}
	return fmt.Sprintf("Error %d", ae.Status)
}
