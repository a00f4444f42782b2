/*
Package req binds HTTP request input.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"companysync/internal/pkg/errs"
)

// MaxJSONBodyBytes caps the size of JSON request bodies.
const MaxJSONBodyBytes int64 = 64 << 10

// BindJSON decodes a single JSON object from the request body into dst, rejecting
// unknown fields and trailing content.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// QueryInt reads an integer query parameter, returning def when it is absent and clamping
// the result to [lo, hi].
func QueryInt(r *http.Request, key string, def, lo, hi int) (int, *errs.CustomError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}

	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}
