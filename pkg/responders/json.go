package responders

import (
	"encoding/json"
	"net/http"
)

// JSON encodes payload to w with the given status. A nil payload writes the
// status and headers only. HTML escaping is off so document text in search
// results round-trips unchanged.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
