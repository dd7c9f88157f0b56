package model

import (
	"net/http"

	"github.com/cyverse/ngs/internal/apperr"
	"github.com/labstack/echo/v4"
)

// ErrorResponseBody is the body of every error response sent by the service.
type ErrorResponseBody struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
}

// SuccessResponseBody wraps the result of a successful request.
type SuccessResponseBody struct {
	Result any    `json:"result"`
	Status string `json:"status"`
}

// SuccessResponse builds the body of a successful response.
func SuccessResponse(data any, status int) SuccessResponseBody {
	return SuccessResponseBody{Result: data, Status: http.StatusText(status)}
}

// Success sends a successful response to the caller.
func Success(ctx echo.Context, data any, status int) error {
	return ctx.JSON(status, SuccessResponse(data, status))
}

// SuccessMessage sends a successful response containing only a message.
func SuccessMessage(ctx echo.Context, msg string, status int) error {
	return Success(ctx, map[string]string{"message": msg}, status)
}

// Error sends an error response with the given message and status code.
func Error(ctx echo.Context, msg string, status int) error {
	return ctx.JSON(status, ErrorResponseBody{Error: msg, Status: http.StatusText(status)})
}

// ErrorFrom sends an error response for a classified error, deriving the status code from its kind.
func ErrorFrom(ctx echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	return ctx.JSON(status, ErrorResponseBody{
		Error:  err.Error(),
		Status: http.StatusText(status),
		Kind:   apperr.KindOf(err).String(),
	})
}
