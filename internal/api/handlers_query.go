package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MirseoDB/mirseodb/internal/dberr"
)

// twoFactorUserID is the identity dangerous statements are verified
// against. Per-user 2FA identities are a console concern; the query
// surface gates on the instance-wide enrollment.
const twoFactorUserID = "default"

// queryRequest is the JSON payload accepted by POST /query
type queryRequest struct {
	SQL       string `json:"sql"`
	AuthToken string `json:"auth_token"`
	// The TOTP code may arrive under any of these keys
	AuthTokenAlt string `json:"authtoken"`
	TOTP         string `json:"totp"`
	TOTPToken    string `json:"totp_token"`
	Email        string `json:"email"`
	UserEmail    string `json:"user_email"`
}

func (r *queryRequest) totpToken() string {
	if r.AuthTokenAlt != "" {
		return r.AuthTokenAlt
	}
	if r.TOTP != "" {
		return r.TOTP
	}
	return r.TOTPToken
}

func (r *queryRequest) email() string {
	if r.Email != "" {
		return r.Email
	}
	return r.UserEmail
}

// queryPOST handles POST /query: JSON body or raw SQL under
// application/sql
func (s *Server) queryPOST(c *gin.Context) {
	start := time.Now()

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		QueryErrorStatus(c, http.StatusBadRequest, "failed to read request body", elapsedMs(start), false)
		return
	}
	var req queryRequest
	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "application/sql") {
		req.SQL = strings.TrimSpace(string(rawBody))
	} else {
		if err := jsonUnmarshal(rawBody, &req); err != nil {
			QueryErrorStatus(c, http.StatusBadRequest, "request body must be JSON or application/sql", elapsedMs(start), false)
			return
		}
	}

	s.runQuery(c, start, req, rawBody)
}

// queryGET handles GET /query?sql=…
func (s *Server) queryGET(c *gin.Context) {
	start := time.Now()
	req := queryRequest{SQL: c.Query("sql")}
	s.runQuery(c, start, req, nil)
}

// runQuery is the shared statement pipeline: sanitize, gate on setup,
// check permissions, parse, gate dangerous statements on 2FA, execute.
func (s *Server) runQuery(c *gin.Context, start time.Time, req queryRequest, rawBody []byte) {
	sql := strings.TrimSpace(req.SQL)
	if sql == "" {
		QueryErrorStatus(c, http.StatusBadRequest, "sql statement is required", elapsedMs(start), false)
		return
	}
	if len(sql) > MaxSQLLength {
		QueryErrorStatus(c, http.StatusRequestEntityTooLarge, "sql statement too long", elapsedMs(start), false)
		return
	}

	if token := s.config.RestAPI.APIToken; token != "" {
		if !HeaderTokenMatches(c.GetHeader("Authorization"), token) && req.AuthToken != token {
			QueryErrorStatus(c, http.StatusUnauthorized, "Invalid or missing API token", elapsedMs(start), false)
			return
		}
	}

	sanitized := false
	if s.settings.SQLInjectionProtect {
		if clean, changed := SanitizeSQL(sql); changed {
			s.log.Warn("suspicious SQL patterns detected; sanitized request")
			sql = clean
			sanitized = true
		}
	}

	if !s.authConfig.IsSetupCompleted() {
		QueryErrorStatus(c, http.StatusServiceUnavailable,
			"Database setup not completed. Please complete initial setup at /setup/init",
			elapsedMs(start), sanitized)
		return
	}

	if email := req.email(); email != "" {
		if !s.authConfig.CheckSQLPermission(email, sql) {
			role := s.authConfig.RoleFor(email)
			QueryError(c, dberr.New(dberr.PermissionDenied,
				"SQL permission denied for user %q with role %q", email, role),
				elapsedMs(start), sanitized)
			return
		}
	}

	stmt, err := s.analyzer.Parse(sql)
	if err != nil {
		QueryError(c, err, elapsedMs(start), sanitized)
		return
	}

	if stmt.RequiresTwoFactor() {
		token := req.totpToken()
		if token == "" {
			QueryError(c, dberr.New(dberr.TwoFactorAuthRequired,
				"2FA required for %s operation. Please provide 'authtoken' field with your TOTP code.",
				stmt.OperationName()), elapsedMs(start), sanitized)
			return
		}
		if !s.totpStore.VerifyToken(twoFactorUserID, token) {
			QueryError(c, dberr.New(dberr.TwoFactorAuthRequired,
				"2FA required for %s operation. Invalid or expired TOTP token.",
				stmt.OperationName()), elapsedMs(start), sanitized)
			return
		}
	}

	rows, err := s.engine.Execute(stmt)
	if err != nil {
		if s.routeCfg.Fallback != "" && rawBody != nil {
			if ok := s.forwardToFallback(c, rawBody); ok {
				return
			}
		}
		QueryError(c, err, elapsedMs(start), sanitized)
		return
	}

	s.log.Statement(stmt.OperationName(), "rows", len(rows))
	QuerySuccess(c, rows, elapsedMs(start), sanitized)
}

// forwardToFallback relays the original request body to the configured
// fallback server's /query route and copies its response through.
// Returns false if the fallback itself failed, letting the caller
// surface the local error instead.
func (s *Server) forwardToFallback(c *gin.Context, rawBody []byte) bool {
	url := strings.TrimSuffix(s.routeCfg.Fallback, "/") + "/query"
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Post(url, c.GetHeader("Content-Type"), bytes.NewReader(rawBody))
	if err != nil {
		s.log.Warn("fallback forward failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Warn("fallback response read failed", "url", url, "error", err)
		return false
	}

	s.log.Info("request forwarded to fallback", "url", url, "status", resp.StatusCode)
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	return true
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func jsonUnmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
