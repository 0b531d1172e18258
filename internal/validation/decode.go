// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dst and validates it. Malformed
// JSON is reported the same way as a failed rule so clients always receive
// a message list.
func DecodeJSON(r *http.Request, dst interface{}) *RequestValidationError {
	if r.Body == nil || r.Body == http.NoBody {
		return NewRequestError("body", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return NewRequestError("body", describeDecodeError(err))
	}
	return ValidateStruct(dst)
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("%s has the wrong type", typeErr.Field)
		}
		return "request body has a field with the wrong type"
	case errors.As(err, &syntaxErr):
		return "request body is not valid JSON"
	case strings.Contains(err.Error(), "unknown field"):
		msg := err.Error()
		if idx := strings.Index(msg, "unknown field"); idx >= 0 {
			return "request body contains " + msg[idx:]
		}
		return "request body contains an unknown field"
	default:
		return "request body is not valid JSON"
	}
}
