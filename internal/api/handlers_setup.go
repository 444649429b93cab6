package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// setupInitRequest is the payload for POST /setup/init
type setupInitRequest struct {
	AdminEmail string `json:"admin_email"`
	Email      string `json:"email"`
}

func (r *setupInitRequest) adminEmail() string {
	if r.AdminEmail != "" {
		return r.AdminEmail
	}
	return r.Email
}

// setupInit begins the one-time admin bootstrap: it enrolls the admin
// email for 2FA and returns the secret plus an ASCII QR code. Setup is
// only finalized by /setup/complete with a valid TOTP code.
func (s *Server) setupInit(c *gin.Context) {
	start := time.Now()

	var req setupInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		QueryErrorStatus(c, http.StatusBadRequest, "request body must be JSON", elapsedMs(start), false)
		return
	}

	email := strings.TrimSpace(req.adminEmail())
	if email == "" || !strings.Contains(email, "@") {
		QueryErrorStatus(c, http.StatusBadRequest, "Valid admin email is required", elapsedMs(start), false)
		return
	}

	if s.authConfig.IsSetupCompleted() {
		QueryErrorStatus(c, http.StatusBadRequest, "Setup already completed", elapsedMs(start), false)
		return
	}

	secret, err := s.totpStore.GenerateSecretForUser(s.config.Data.Dir, email)
	if err != nil {
		QueryError(c, err, elapsedMs(start), false)
		return
	}

	otpURL, err := s.totpStore.OTPAuthURL(email, "MirseoDB Admin Setup")
	if err != nil {
		QueryError(c, err, elapsedMs(start), false)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"message":           "Admin setup initiated",
		"admin_email":       email,
		"secret":            secret,
		"qr_ascii":          totpQR(otpURL),
		"execution_time_ms": elapsedMs(start),
	})
}

// setupCompleteRequest is the payload for POST /setup/complete
type setupCompleteRequest struct {
	AdminEmail string `json:"admin_email"`
	Email      string `json:"email"`
	TOTPToken  string `json:"totp_token"`
	Token      string `json:"token"`
	Skip2FA    bool   `json:"skip_2fa"`
}

func (r *setupCompleteRequest) adminEmail() string {
	if r.AdminEmail != "" {
		return r.AdminEmail
	}
	return r.Email
}

func (r *setupCompleteRequest) totpToken() string {
	if r.TOTPToken != "" {
		return r.TOTPToken
	}
	return r.Token
}

// setupComplete finalizes the bootstrap: verifies the admin's TOTP code
// (unless explicitly skipped) and marks setup completed.
func (s *Server) setupComplete(c *gin.Context) {
	start := time.Now()

	var req setupCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		QueryErrorStatus(c, http.StatusBadRequest, "request body must be JSON", elapsedMs(start), false)
		return
	}

	email := strings.TrimSpace(req.adminEmail())
	if email == "" || !strings.Contains(email, "@") {
		QueryErrorStatus(c, http.StatusBadRequest, "Valid admin email is required", elapsedMs(start), false)
		return
	}

	if s.authConfig.IsSetupCompleted() {
		QueryErrorStatus(c, http.StatusBadRequest, "Setup already completed", elapsedMs(start), false)
		return
	}

	if !req.Skip2FA {
		token := req.totpToken()
		if token == "" {
			QueryErrorStatus(c, http.StatusBadRequest, "TOTP token is required to complete setup", elapsedMs(start), false)
			return
		}
		if !s.totpStore.VerifyToken(email, token) {
			QueryErrorStatus(c, http.StatusBadRequest, "Invalid or expired TOTP token", elapsedMs(start), false)
			return
		}
	}

	if err := s.authConfig.CompleteSetup(s.config.Data.Dir, email); err != nil {
		QueryError(c, err, elapsedMs(start), false)
		return
	}

	s.log.Info("setup completed", "admin_email", email)
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"message":           "Setup completed",
		"admin_email":       email,
		"execution_time_ms": elapsedMs(start),
	})
}

// setupStatus reports whether the one-time bootstrap has run
func (s *Server) setupStatus(c *gin.Context) {
	resp := gin.H{
		"setup_completed": s.authConfig.IsSetupCompleted(),
		"user_count":      s.authConfig.UserCount(),
	}
	if admin, ok := s.authConfig.AdminEmailAddress(); ok {
		resp["admin_email"] = admin
	}
	c.JSON(http.StatusOK, resp)
}
