// Package http provides the HTTP middleware and error responses shared by
// WhatsAgent services.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func ErrInternal(logger *zap.Logger, w http.ResponseWriter, err error) {
	logger.Error("internal server error", zap.Error(err))
	http.Error(
		w,
		"An unexpected internal server error occurred, please try again. If the issue persists, please contact support.",
		http.StatusInternalServerError,
	)
}

// ErrBadRequest responds with the validator field failures contained in err,
// or with a generic message if err holds none.
func ErrBadRequest(logger *zap.Logger, w http.ResponseWriter, err error) {
	logger.Warn("bad request", zap.Error(err))

	var valerrors validator.ValidationErrors
	if !errors.As(err, &valerrors) {
		http.Error(
			w,
			"An unknown field is invalid. Please update your request and retry.",
			http.StatusBadRequest,
		)
		return
	}

	errormsgs := make([]string, len(valerrors))
	for i, err := range valerrors {
		errormsgs[i] = fmt.Sprintf("\"%s\" failed \"%s\" validator", err.Field(), err.Tag())
	}

	http.Error(
		w,
		fmt.Sprintf("Field(s) validation failure: %s. Please update your request and retry.", strings.Join(errormsgs, ", ")),
		http.StatusBadRequest,
	)
}

// ErrUnprocessable responds that the request is well-formed but cannot be
// carried out as asked; msg is shown to the client.
func ErrUnprocessable(logger *zap.Logger, w http.ResponseWriter, msg string) {
	logger.Warn("unprocessable request", zap.String("reason", msg))
	http.Error(w, msg, http.StatusUnprocessableEntity)
}

func ErrConflict(w http.ResponseWriter) {
	http.Error(
		w,
		"Conflict occurred carrying out request. If this is unexpected, please contact support.",
		http.StatusConflict,
	)
}

func ErrNotFound(w http.ResponseWriter) {
	http.Error(
		w,
		"Resource not found. If this is unexpected, please contact support.",
		http.StatusNotFound,
	)
}
