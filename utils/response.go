package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hexfeed/models"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// ErrorFrom maps the feed error taxonomy onto HTTP statuses and codes.
func ErrorFrom(ctx *gin.Context, err error, fallback string) {
	msg := models.Message(err, fallback)
	switch {
	case models.IsValidationError(err):
		Error(ctx, http.StatusBadRequest, 40010, msg)
	case models.IsNotAuthenticated(err):
		Error(ctx, http.StatusUnauthorized, 40110, msg)
	case models.IsAuthorizationError(err):
		Error(ctx, http.StatusForbidden, 40310, msg)
	case models.IsUploadError(err):
		Error(ctx, http.StatusBadGateway, 50210, msg)
	case models.IsPersistenceError(err), models.IsStreamError(err):
		Error(ctx, http.StatusBadGateway, 50220, msg)
	default:
		Error(ctx, http.StatusInternalServerError, 50000, msg)
	}
}
