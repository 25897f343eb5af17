package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends data as json and enforces status code
func writeJSON(w http.ResponseWriter, code int, data any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

// writeError renders err as {"success": false, "error": ...} with the status from [shared.HTTPStatus].
// Unclassified errors are logged and reported without detail.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	code := shared.HTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, errorResponse{Success: false, Error: msg})
}

// bindQuery decodes the request's query string into T and validates it using struct tags.
//
// Fields are named by their mapstructure tag; strings are converted to the field type, so "true" binds to a bool and
// "20" to an int.
func bindQuery[T any](r *http.Request) (T, error) {
	var value T

	input := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			input[k] = v[0]
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{WeaklyTypedInput: true, Result: &value})
	if err != nil {
		return value, err
	}
	if err := dec.Decode(input); err != nil {
		return value, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if err := validate.Struct(value); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return value, validationError(errs)
		}
		return value, err
	}
	return value, nil
}

func validationError(errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "is required"
		case "datetime":
			message = "must be a date in YYYY-MM-DD format"
		case "oneof":
			message = fmt.Sprintf("must be one of [%s]", fieldError.Param())
		case "min", "gte":
			message = fmt.Sprintf("must be at least %s", fieldError.Param())
		case "max", "lte":
			message = fmt.Sprintf("must be at most %s", fieldError.Param())
		default:
			message = "is invalid"
		}
		msgs = append(msgs, fieldError.Field()+" "+message)
	}
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
}
