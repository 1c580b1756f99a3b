package http

import (
	"strings"
	"unicode/utf8"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// Bodies on these paths carry passwords, tokens or payer data.
var sensitivePathPrefixes = []string{
	"/auth/",
	"/payments/webhook",
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: func() string {
				return shortuuid.New()
			},
		}),
		middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
			Skipper: skipSensitiveBodies,
			Handler: logBodies,
		}),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogURI:       true,
			LogRequestID: true,
			LogStatus:    true,
			LogMethod:    true,
			LogLatency:   true,
			LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
				log.FromContext(c.Request().Context()).WithFields(logrus.Fields{
					"URI":        values.URI,
					"request_id": values.RequestID,
					"status":     values.Status,
					"method":     values.Method,
					"duration":   values.Latency.String(),
				}).WithError(values.Error).Info("Request done")

				return nil
			},
		}),
		correlationID,
	)

	return e
}

func skipSensitiveBodies(c echo.Context) bool {
	path := c.Request().URL.Path
	for _, prefix := range sensitivePathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func logBodies(c echo.Context, reqBody, resBody []byte) {
	fields := logrus.Fields{
		"request_id":   c.Response().Header().Get(echo.HeaderXRequestID),
		"request_body": string(reqBody),
	}
	if utf8.Valid(resBody) {
		fields["response_body"] = string(resBody)
	} else {
		fields["response_body"] = "<binary data>"
	}

	log.FromContext(c.Request().Context()).WithFields(fields).Info("Request/response")
}

func correlationID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		id := req.Header.Get(log.CorrelationIDHttpHeader)
		if id == "" {
			id = shortuuid.New()
		}

		ctx := log.ToContext(req.Context(), logrus.WithFields(logrus.Fields{"correlation_id": id}))
		ctx = log.ContextWithCorrelationID(ctx, id)

		c.SetRequest(req.WithContext(ctx))
		c.Response().Header().Set(log.CorrelationIDHttpHeader, id)

		return next(c)
	}
}
