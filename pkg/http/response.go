package http

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// WriteJSON writes v as the response body.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// SeeOther redirects a form POST to path with the given query flags.
func SeeOther(w http.ResponseWriter, r *http.Request, path string, query url.Values) {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Flag builds a single-flag query such as ?error=true.
func Flag(key, value string) url.Values {
	return url.Values{key: []string{value}}
}
