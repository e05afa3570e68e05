// Package bind provides JSON request binding with struct tag validation
// using go-playground/validator/v10.
//
// Used by the login endpoint and available to the site's other write
// endpoints (newsletter subscription, contact forms):
//
//	type subscribeRequest struct {
//	    Email string `json:"email" validate:"required,email"`
//	}
//
//	r.Post("/api/newsletter", func(w http.ResponseWriter, r *http.Request) {
//	    var req subscribeRequest
//	    if !bind.JSON(r, &req) {
//	        return
//	    }
//	    // ...
//	})
//
// Validation failures become a structured 400 with per-field errors through
// the sitegate response state.
package bind

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/orelode/sitegate"
)

var (
	validate   *validator.Validate
	validateMu sync.RWMutex
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
}

// JSON decodes the request body into dest and validates it.
// Returns true if binding and validation succeeded, false otherwise.
// On failure an error is set in the sitegate response state (if active).
//
// Body size limits: if sitegate.MaxBodySize middleware is active, requests
// exceeding the limit during decode return ErrPayloadTooLarge (413). This
// handles chunked transfers and requests with missing or incorrect
// Content-Length headers.
func JSON(r *http.Request, dest any) bool {
	ctx := r.Context()

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if sitegate.HasState(ctx) {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				sitegate.SetError(r, sitegate.ErrPayloadTooLarge.With("Request body too large"))
			} else {
				sitegate.SetError(r, sitegate.ErrBadRequest.With("Invalid JSON request body"))
			}
		}
		return false
	}

	validateMu.RLock()
	err := validate.Struct(dest)
	validateMu.RUnlock()

	if err != nil {
		if sitegate.HasState(ctx) {
			sitegate.SetError(r, sitegate.NewValidationError(fieldErrors(err)))
		}
		return false
	}

	return true
}

// RegisterValidation registers a custom validation function.
// Must be called at startup before handling requests.
func RegisterValidation(tag string, fn validator.Func) error {
	validateMu.Lock()
	defer validateMu.Unlock()
	return validate.RegisterValidation(tag, fn)
}

func fieldErrors(err error) []sitegate.FieldError {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []sitegate.FieldError{{Code: "validation", Message: err.Error()}}
	}

	result := make([]sitegate.FieldError, len(errs))
	for i, e := range errs {
		result[i] = sitegate.FieldError{
			Param:   e.Field(),
			Code:    e.Tag(),
			Message: message(e.Tag(), e.Param()),
		}
	}
	return result
}

func message(tag, param string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of: " + param
	default:
		if param != "" {
			return tag + "=" + param
		}
		return tag
	}
}
