package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// menuID accepts a menu id posted as a JSON string or number.
type menuID string

func (m *menuID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = menuID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("menu must be a string or a number")
	}
	*m = menuID(n.String())
	return nil
}

func ids(in []menuID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = string(id)
	}
	return out
}

var errBodyTooLarge = errors.New("request body too large")

// readJSON decodes a size-limited body. Numbers stay json.Number so menu
// args keep their integer form.
func readJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func badRequestStatus(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type ajaxData struct {
	Message string `json:"message"`
}

type ajaxResponse struct {
	Success bool      `json:"success"`
	Data    *ajaxData `json:"data,omitempty"`
}

// writeAjax answers in the admin-ajax envelope. A nil err is success.
func writeAjax(w http.ResponseWriter, status int, err error) {
	resp := ajaxResponse{Success: err == nil}
	if err != nil {
		resp.Data = &ajaxData{Message: err.Error()}
	}
	writeJSON(w, status, resp)
}
