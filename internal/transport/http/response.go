package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	httpmw "github.com/cwrk-planet/roomsync/internal/transport/http/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError пишет {"message": ...}; 5xx логируются с исходной ошибкой.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := ToHTTP(err)
	if status >= http.StatusInternalServerError {
		httpmw.L(r.Context()).Error(op, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Message: msg})
}

// decodeBody — пустое тело допустимо, мусор — 400.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidJSON(err)
	}
	return nil
}
