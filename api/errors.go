package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/fulfillment"
)

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var upstream *fulfillment.UpstreamFetchError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, fulfillment.ErrNoFilesDelivered):
		return http.StatusInternalServerError
	case errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 600:
		return upstream.Status
	case errors.Is(err, fulfillment.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, fulfillment.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, fulfillment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fulfillment.ErrTestMode):
		return http.StatusServiceUnavailable
	case errors.Is(err, fulfillment.ErrUpstreamFetch), errors.Is(err, fulfillment.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type testModeBody struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	TestMode   bool     `json:"test_mode"`
	FilesFound int      `json:"files_found"`
	FileNames  []string `json:"file_names"`
}

// writeError renders err with a terse public message. Test-mode and
// not-found errors carry details for storefront debugging.
func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var tm *fulfillment.TestModeError
	if errors.As(err, &tm) {
		writeJSON(w, status, testModeBody{
			Error:      "Test mode active",
			Message:    "File downloads are disabled in test mode. Switch the store to live mode to enable downloads.",
			TestMode:   true,
			FilesFound: len(tm.FileNames),
			FileNames:  tm.FileNames,
		})
		return
	}

	body := errorBody{Error: publicMessage(err, status)}
	if status == http.StatusNotFound {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func publicMessage(err error, status int) string {
	var upstream *fulfillment.UpstreamFetchError
	switch {
	case errors.Is(err, fulfillment.ErrNoFilesDelivered):
		return "No files could be delivered"
	case errors.As(err, &upstream):
		return "Upstream download failed: " + http.StatusText(status)
	case errors.Is(err, fulfillment.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, fulfillment.ErrAuth):
		return "Invalid signature"
	case errors.Is(err, fulfillment.ErrNotFound):
		return "No files found"
	case errors.Is(err, fulfillment.ErrConfig):
		return "Server misconfigured"
	case errors.Is(err, fulfillment.ErrProvider):
		return "Payment provider request failed"
	default:
		return http.StatusText(status)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fulfillment.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
