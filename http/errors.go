package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"ticketing/entity"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByKind = map[entity.ErrorKind]int{
	entity.KindNotFound:      http.StatusNotFound,
	entity.KindUnauthorized:  http.StatusUnauthorized,
	entity.KindForbidden:     http.StatusForbidden,
	entity.KindValidation:    http.StatusBadRequest,
	entity.KindConflict:      http.StatusConflict,
	entity.KindGateway:       http.StatusBadGateway,
	entity.KindConfiguration: http.StatusInternalServerError,
	entity.KindDelivery:      http.StatusBadGateway,
}

// handleError writes domain errors as {"error": code, "message": text} with
// the status of their kind. Anything unrecognised is a 500.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := errorResponse{Error: "internal_error", Message: http.StatusText(status)}

	var domainErr *entity.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &domainErr):
		if s, ok := statusByKind[domainErr.Kind]; ok {
			status = s
		}
		body = errorResponse{Error: domainErr.Code, Message: domainErr.Message}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		body = errorResponse{
			Error:   strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"),
			Message: fmt.Sprint(httpErr.Message),
		}
	}

	logger := log.FromContext(c.Request().Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Debug("Request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.WithError(err).Error("Writing error response failed")
	}
}
