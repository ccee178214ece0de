// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	"parking-service/internal/domain/parking"
	xerrors "parking-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// abort before writing so later handlers in the chain are skipped
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// FromError writes err with the status its sentinel maps to.
func FromError(c *gin.Context, message string, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		// internals stay out of the body
		Error(c, code, message, xerrors.ErrInternal)
		return
	}

	var insufficient *parking.InsufficientPaymentError
	if errors.As(err, &insufficient) {
		Error(c, code, message, err, gin.H{
			"required": insufficient.Required,
			"paid":     insufficient.Paid,
		})
		return
	}
	Error(c, code, message, err)
}

// StatusFor maps engine and application errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, parking.ErrInvalidIdentifier),
		errors.Is(err, parking.ErrUnsupportedVehicleType),
		errors.Is(err, parking.ErrInvalidExitReason),
		errors.Is(err, parking.ErrInsufficientPayment),
		errors.Is(err, parking.ErrInconsistentExceptionReason),
		errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, parking.ErrTicketNotFound),
		errors.Is(err, parking.ErrSpotNotFound),
		errors.Is(err, parking.ErrVehicleNotFound),
		errors.Is(err, parking.ErrNoSpotAvailable),
		errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrDuplicateActiveTicket),
		errors.Is(err, parking.ErrStoreConflict),
		errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

// TooManyRequests sends a 429 response.
func TooManyRequests(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, message, xerrors.ErrRateLimited)
}
