/*
Package req provides helpers for HTTP request parsing and data binding.

BindJSON decodes a JSON body into the destination struct and then enforces
the struct's `validate` tags, so handlers receive structurally valid input.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
)

// validate is the shared validator instance. The validator caches struct
// metadata internally and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// BindJSON binds the JSON request body to dst and validates it.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	if err := validate.Struct(dst); err != nil {
		logx.Warn("Request body failed validation", "error", err.Error())
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}
