// Package totp implements MirseoDB's two-factor authentication layer:
// RFC 6238 time-based one-time passwords (HMAC-SHA1, 30-second steps,
// 6 digits) backed by the 2fa_secrets.dat file holding
// user_id:base32_secret lines.
package totp

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MirseoDB/mirseodb/internal/dberr"
)

const (
	digits       = 6
	period       = 30 * time.Second
	secretBytes  = 20
	driftWindows = 1 // tolerate one period of clock drift in either direction
)

// Store holds every user's TOTP secret, keyed by user id, backed by
// 2fa_secrets.dat.
type Store struct {
	mu      sync.RWMutex
	secrets map[string]string // user_id -> base32 secret
}

// New returns an empty Store.
func New() *Store {
	return &Store{secrets: make(map[string]string)}
}

// Load reads 2fa_secrets.dat from configDir ("user_id:secret" lines,
// blank lines and "#" comments ignored), returning an empty Store if the
// file does not yet exist.
func Load(configDir string) (*Store, error) {
	path := filepath.Join(configDir, "2fa_secrets.dat")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, dberr.Wrap(dberr.IoError, err, "reading 2FA secrets %q", path)
	}
	defer f.Close()

	secrets := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		userID, secret, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		secrets[strings.TrimSpace(userID)] = strings.TrimSpace(secret)
	}
	if err := scanner.Err(); err != nil {
		return nil, dberr.Wrap(dberr.IoError, err, "scanning 2FA secrets %q", path)
	}
	return &Store{secrets: secrets}, nil
}

// Save writes every secret to 2fa_secrets.dat under configDir.
func (s *Store) Save(configDir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return dberr.Wrap(dberr.IoError, err, "creating config directory %q", configDir)
	}

	var b strings.Builder
	b.WriteString("# MirseoDB 2FA Secrets\n")
	b.WriteString("# Format: user_id:secret\n\n")
	for userID, secret := range s.secrets {
		fmt.Fprintf(&b, "%s:%s\n", userID, secret)
	}

	path := filepath.Join(configDir, "2fa_secrets.dat")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return dberr.Wrap(dberr.IoError, err, "writing 2FA secrets %q", path)
	}
	return nil
}

// GenerateSecretForUser mints a new random base32 secret for userID,
// stores it, and persists the store.
func (s *Store) GenerateSecretForUser(configDir, userID string) (string, error) {
	var raw [secretBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", dberr.Wrap(dberr.IoError, err, "generating TOTP secret")
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])

	s.mu.Lock()
	s.secrets[userID] = secret
	s.mu.Unlock()

	if err := s.Save(configDir); err != nil {
		return "", err
	}
	return secret, nil
}

// HasUser reports whether userID has an enrolled secret.
func (s *Store) HasUser(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[userID]
	return ok
}

// SetupInfo returns userID's raw secret, for display during enrollment.
func (s *Store) SetupInfo(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[userID]
	return secret, ok
}

// VerifyToken reports whether token is a valid 6-digit TOTP code for
// userID at the current time, tolerating one period of clock drift in
// either direction.
func (s *Store) VerifyToken(userID, token string) bool {
	s.mu.RLock()
	secret, ok := s.secrets[userID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	now := time.Now().Unix()
	for offset := -driftWindows; offset <= driftWindows; offset++ {
		counter := uint64((now + int64(offset)*int64(period.Seconds())) / int64(period.Seconds()))
		expected, err := generate(secret, counter)
		if err == nil && token == expected {
			return true
		}
	}
	return false
}

// OTPAuthURL builds the otpauth:// URL an authenticator app's QR scanner
// expects, for userID's enrolled secret under the given issuer label.
func (s *Store) OTPAuthURL(userID, issuer string) (string, error) {
	secret, ok := s.SetupInfo(userID)
	if !ok {
		return "", dberr.New(dberr.InvalidCredentials, "user %q has no enrolled 2FA secret", userID)
	}
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s", issuer, userID, secret, issuer), nil
}

// generate computes the 6-digit TOTP for secret at the given 30-second
// time counter, per RFC 4226's dynamic truncation (RFC 6238 §4).
func generate(secret string, counter uint64) (string, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", dberr.Wrap(dberr.ParseError, err, "decoding TOTP secret")
	}

	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	binCode := (uint32(sum[offset]&0x7f) << 24) |
		(uint32(sum[offset+1]) << 16) |
		(uint32(sum[offset+2]) << 8) |
		uint32(sum[offset+3])

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, binCode%mod), nil
}
