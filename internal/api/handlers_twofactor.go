package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MirseoDB/mirseodb/internal/totp"
)

// twoFactorSetup mints a fresh TOTP secret for the instance identity and
// returns it for enrollment in an authenticator app
func (s *Server) twoFactorSetup(c *gin.Context) {
	start := time.Now()

	secret, err := s.totpStore.GenerateSecretForUser(s.config.Data.Dir, twoFactorUserID)
	if err != nil {
		QueryError(c, err, elapsedMs(start), false)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"message":           "2FA setup initiated",
		"secret":            secret,
		"user_id":           twoFactorUserID,
		"execution_time_ms": elapsedMs(start),
	})
}

// twoFactorQR renders the enrolled secret as an ASCII QR code plus the
// otpauth URL for manual entry
func (s *Server) twoFactorQR(c *gin.Context) {
	start := time.Now()

	otpURL, err := s.totpStore.OTPAuthURL(twoFactorUserID, "MirseoDB")
	if err != nil {
		QueryError(c, err, elapsedMs(start), false)
		return
	}
	secret, _ := s.totpStore.SetupInfo(twoFactorUserID)

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"qr_ascii":          totpQR(otpURL),
		"secret":            secret,
		"otpauth_url":       otpURL,
		"instructions":      "Install Google Authenticator or similar TOTP app and scan the QR code or manually enter the secret key.",
		"execution_time_ms": elapsedMs(start),
	})
}

// twoFactorVerifyRequest is the payload for POST /2fa/verify
type twoFactorVerifyRequest struct {
	TOTPToken string `json:"totp_token"`
	Token     string `json:"token"`
	Code      string `json:"code"`
}

func (r *twoFactorVerifyRequest) token() string {
	if r.TOTPToken != "" {
		return r.TOTPToken
	}
	if r.Token != "" {
		return r.Token
	}
	return r.Code
}

// twoFactorVerify checks a TOTP code against the enrolled secret
func (s *Server) twoFactorVerify(c *gin.Context) {
	start := time.Now()

	var req twoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		QueryErrorStatus(c, http.StatusBadRequest, "request body must be JSON", elapsedMs(start), false)
		return
	}

	token := req.token()
	if token == "" {
		QueryErrorStatus(c, http.StatusBadRequest, "TOTP token is required", elapsedMs(start), false)
		return
	}

	valid := s.totpStore.VerifyToken(twoFactorUserID, token)
	status := http.StatusOK
	if !valid {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{
		"valid":             valid,
		"user_id":           twoFactorUserID,
		"execution_time_ms": elapsedMs(start),
	})
}

// totpQR renders an otpauth URL as the ASCII QR placeholder grid
func totpQR(otpauthURL string) string {
	return totp.ASCIIQRCode(otpauthURL)
}
