package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
)

const maxRequestBody = 1 << 20

// respondJSON writes a JSON response with the given status code and data.
// If data is nil, only the status code and Content-Type header are written.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// formDecoder is implemented by request types that also accept
// application/x-www-form-urlencoded bodies.
type formDecoder interface {
	decodeForm(values url.Values)
}

var errUnsupportedMediaType = errors.New("unsupported content type")

// decodeRequest fills dst from a JSON or urlencoded form body.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst formDecoder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType := "application/x-www-form-urlencoded"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return errUnsupportedMediaType
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		return json.NewDecoder(r.Body).Decode(dst)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return err
		}
		dst.decodeForm(r.PostForm)
		return nil
	default:
		return errUnsupportedMediaType
	}
}
