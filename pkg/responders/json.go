// Package responders writes API response bodies. The API speaks JSON
// only.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as an application/json response with the given
// status. A nil payload writes only the status line and headers.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
