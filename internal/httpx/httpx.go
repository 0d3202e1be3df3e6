// Package httpx carries the JSON plumbing shared by the warden HTTP servers:
// response writing, request decoding with struct validation, and URL
// parameter parsing.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Detail is the uniform error body: {"detail": "..."}.
type Detail struct {
	Detail string `json:"detail"`
}

// JSON writes v with the given status. A nil v writes only the status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// Encode errors past this point cannot be reported to the client.
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the uniform error body with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Detail{Detail: msg})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode unmarshals the request body into dst and runs struct validation.
// Callers map the returned error to 400.
func Decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// URLParamInt64 parses a chi URL parameter as a positive integer id.
func URLParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}
