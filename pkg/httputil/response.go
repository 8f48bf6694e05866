package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/campaign-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details interface{}      `json:"details,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithAccepted reports that work was accepted for asynchronous
// processing. Dispatch responses go through here: "queued" means the
// payload reached the queue, not that any message was sent.
func RespondWithAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response with the HTTP status derived
// from the application error code.
func RespondWithError(c *gin.Context, err error) {
	RespondWithErrorDetails(c, err, nil)
}

// RespondWithErrorDetails attaches structured details (for example the
// list of unresolvable recipients) to the error body.
func RespondWithErrorDetails(c *gin.Context, err error, details interface{}) {
	code := errors.CodeOf(err)
	message := err.Error()

	c.JSON(statusFor(code), Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest, errors.ErrIdentityResolution:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConfiguration, errors.ErrLedgerWrite, errors.ErrRouting:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
