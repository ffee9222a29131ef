package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	invitationdomain "github.com/smallbiznis/taskboard/internal/invitation/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: validationErrorMessage(code),
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusGone, errorPayload{
			Type:    "token_expired",
			Message: "access token expired, refresh required",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: unauthorizedMessage(err),
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authdomain.ErrAccountInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on the access
// log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "server", code
	}
	return "client", code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isBoardValidationError(err),
		isAuthValidationError(err),
		isInvitationValidationError(err):
		return true
	default:
		return false
	}
}

func isBoardValidationError(err error) bool {
	switch {
	case errors.Is(err, boarddomain.ErrInvalidUser),
		errors.Is(err, boarddomain.ErrInvalidBoard),
		errors.Is(err, boarddomain.ErrInvalidColumn),
		errors.Is(err, boarddomain.ErrInvalidCard),
		errors.Is(err, boarddomain.ErrInvalidTitle),
		errors.Is(err, boarddomain.ErrInvalidDescription),
		errors.Is(err, boarddomain.ErrInvalidType),
		errors.Is(err, boarddomain.ErrInvalidOrder),
		errors.Is(err, boarddomain.ErrInvalidMove),
		errors.Is(err, boarddomain.ErrInvalidComment),
		errors.Is(err, boarddomain.ErrInvalidCover),
		errors.Is(err, boarddomain.ErrInvalidMember),
		errors.Is(err, boarddomain.ErrLimitExceeded):
		return true
	default:
		return false
	}
}

func isAuthValidationError(err error) bool {
	switch {
	case errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, authdomain.ErrIncorrectPassword),
		errors.Is(err, authdomain.ErrInvalidDisplayName),
		errors.Is(err, authdomain.ErrInvalidAvatar),
		errors.Is(err, authdomain.ErrInvalidVerifyToken):
		return true
	default:
		return false
	}
}

func isInvitationValidationError(err error) bool {
	switch {
	case errors.Is(err, invitationdomain.ErrInvalidInvitation),
		errors.Is(err, invitationdomain.ErrInvalidStatus),
		errors.Is(err, invitationdomain.ErrInvalidEmail),
		errors.Is(err, invitationdomain.ErrSelfInvitation):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, authdomain.ErrAlreadyVerified),
		errors.Is(err, invitationdomain.ErrAlreadyMember),
		errors.Is(err, invitationdomain.ErrAlreadyResponded):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, boarddomain.ErrBoardNotFound),
		errors.Is(err, boarddomain.ErrColumnNotFound),
		errors.Is(err, boarddomain.ErrCardNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, invitationdomain.ErrReferenceNotFound),
		errors.Is(err, invitationdomain.ErrInvitationNotFound),
		errors.Is(err, invitationdomain.ErrBoardNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, invitationdomain.ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, authdomain.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, authdomain.ErrIncorrectPassword):
		return "incorrect_password"
	case errors.Is(err, authdomain.ErrInvalidDisplayName):
		return "invalid_displayName"
	case errors.Is(err, authdomain.ErrInvalidAvatar):
		return "invalid_avatar"
	case errors.Is(err, authdomain.ErrInvalidVerifyToken):
		return "invalid_token"
	case errors.Is(err, invitationdomain.ErrSelfInvitation):
		return "self_invitation"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	switch code {
	case "weak_password":
		return "password"
	case "incorrect_password":
		return "current_password"
	case "self_invitation":
		return "inviteeEmail"
	default:
		return ""
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_order":
		return "order arrays are inconsistent with the stored board"
	case "invalid_move":
		return "cards can only move between columns of the same board"
	case "limit_exceeded":
		return "board limit exceeded"
	case "weak_password":
		return "password must be at least 8 characters and contain a letter and a digit"
	case "incorrect_password":
		return "your current password is incorrect"
	case "invalid_token":
		return "invalid verification token"
	case "self_invitation":
		return "you cannot invite yourself"
	default:
		return "invalid value"
	}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		return "your email or password is incorrect"
	}
	return "unauthorized"
}

func forbiddenMessage(err error) string {
	if errors.Is(err, authdomain.ErrAccountInactive) {
		return "your account is not active, please verify your email"
	}
	return "forbidden"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrUserExists):
		return "email already exists"
	case errors.Is(err, authdomain.ErrAlreadyVerified):
		return "your account is already active"
	case errors.Is(err, invitationdomain.ErrAlreadyMember):
		return "you are already a member of this board"
	case errors.Is(err, invitationdomain.ErrAlreadyResponded):
		return "invitation was already answered"
	default:
		return "conflict"
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, invitationdomain.ErrReferenceNotFound):
		return "Board, invitee or inviter not found"
	case errors.Is(err, boarddomain.ErrBoardNotFound),
		errors.Is(err, invitationdomain.ErrBoardNotFound):
		return "board not found"
	case errors.Is(err, boarddomain.ErrColumnNotFound):
		return "column not found"
	case errors.Is(err, boarddomain.ErrCardNotFound):
		return "card not found"
	case errors.Is(err, authdomain.ErrUserNotFound):
		return "account not found"
	case errors.Is(err, invitationdomain.ErrInvitationNotFound):
		return "invitation not found"
	default:
		return "not found"
	}
}
