package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// QueryResponse is the success shape of /query
type QueryResponse struct {
	Status          string           `json:"status"`
	StatusCode      int              `json:"status_code"`
	RowCount        int              `json:"row_count"`
	Rows            []map[string]any `json:"rows"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	Sanitized       bool             `json:"sanitized,omitempty"`
}

// QueryErrorResponse is the failure shape of /query
type QueryErrorResponse struct {
	Error           string  `json:"error"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	Requires2FA     bool    `json:"requires_2fa,omitempty"`
	Sanitized       bool    `json:"sanitized,omitempty"`
}

// QuerySuccess writes the spec's success envelope for a statement result
func QuerySuccess(c *gin.Context, rows []table.Row, elapsedMs float64, sanitized bool) {
	c.JSON(http.StatusOK, &QueryResponse{
		Status:          "ok",
		StatusCode:      http.StatusOK,
		RowCount:        len(rows),
		Rows:            rowsToJSON(rows),
		ExecutionTimeMs: elapsedMs,
		Sanitized:       sanitized,
	})
}

// QueryError writes the spec's error envelope, mapping the error's kind
// to an HTTP status
func QueryError(c *gin.Context, err error, elapsedMs float64, sanitized bool) {
	status, requires2FA := statusForError(err)
	c.JSON(status, &QueryErrorResponse{
		Error:           err.Error(),
		ExecutionTimeMs: elapsedMs,
		Requires2FA:     requires2FA,
		Sanitized:       sanitized,
	})
}

// QueryErrorStatus writes the error envelope with an explicit status,
// for conditions outside the DatabaseError taxonomy (setup not
// completed, malformed payload)
func QueryErrorStatus(c *gin.Context, status int, message string, elapsedMs float64, sanitized bool) {
	c.JSON(status, &QueryErrorResponse{
		Error:           message,
		ExecutionTimeMs: elapsedMs,
		Sanitized:       sanitized,
	})
}

// statusForError maps the DatabaseError taxonomy to HTTP status codes.
// Unrecognised errors are treated as internal.
func statusForError(err error) (status int, requires2FA bool) {
	var e *dberr.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, false
	}
	switch e.Kind {
	case dberr.ParseError, dberr.InvalidSqlSyntax, dberr.InvalidDataType,
		dberr.SqlInjectionDetected, dberr.InvalidIndexHint:
		return http.StatusBadRequest, false
	case dberr.TableNotFound, dberr.ColumnNotFound, dberr.IndexNotFound:
		return http.StatusNotFound, false
	case dberr.UniqueConstraintViolation, dberr.PrimaryKeyViolation,
		dberr.IndexAlreadyExists:
		return http.StatusConflict, false
	case dberr.PermissionDenied:
		return http.StatusForbidden, false
	case dberr.InvalidCredentials:
		return http.StatusUnauthorized, false
	case dberr.TwoFactorAuthRequired:
		return http.StatusForbidden, true
	case dberr.QueryTooComplex:
		return http.StatusRequestEntityTooLarge, false
	case dberr.NetworkError, dberr.HttpError:
		return http.StatusBadGateway, false
	default:
		return http.StatusInternalServerError, false
	}
}

// rowsToJSON flattens typed rows into plain JSON objects: Int as number,
// Float as number, Text as string, Bool as bool, Null as null.
func rowsToJSON(rows []table.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(row))
		for col, v := range row {
			m[col] = valueToJSON(v)
		}
		out[i] = m
	}
	return out
}

func valueToJSON(v value.Value) any {
	switch v.Tag {
	case value.TypeInt:
		return v.I
	case value.TypeFloat:
		return v.F
	case value.TypeText:
		return v.S
	case value.TypeBool:
		return v.B
	default:
		return nil
	}
}

// ErrorBody is the generic error shape for non-query routes
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse sends an error response with the given status
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &ErrorBody{Error: message})
}

// BadRequestError sends a 400 error
func BadRequestError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

// UnauthorizedError sends a 401 error
func UnauthorizedError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// PayloadTooLargeError sends a 413 error
func PayloadTooLargeError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message)
}

// TooManyRequestsError sends a 429 error
func TooManyRequestsError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}

// ServiceUnavailableError sends a 503 error
func ServiceUnavailableError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, message)
}
