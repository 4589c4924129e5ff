package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/pliu/chatterbox/internal/apperr"
)

const msgInternal = "Internal server error"

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// decodeRequest fills dst from a JSON or urlencoded form body. An empty body
// leaves dst untouched so field validation reports what is missing. Data
// after the JSON value is rejected.
func decodeRequest(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := formDecoder.Decode(dst, r.PostForm); err != nil {
			return apperr.Validation("invalid request body")
		}
		return nil
	}

	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return apperr.Validation("invalid request body")
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, text)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, log, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeError answers every failure. Errors without a client-safe message
// are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	msg, ok := apperr.PublicMessage(err)
	if !ok || status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		writeText(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeText(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAuth):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
