package httpapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
)

var (
	errAccountKeyRequired = errors.New("accountKey is required")
	errWorkKeyRequired    = errors.New("workKey is required")
)

// decodeJSONBody decodes r's body into v. A missing or empty body is not an
// error: every caller here treats an absent body as all-defaults.
func decodeJSONBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
