// Package auth manages MirseoDB's user/role/permission model: the
// on-disk auth_config.json document, loaded once at collaborator startup
// and consulted on every SQL statement.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MirseoDB/mirseodb/internal/dberr"
)

// PermissionGroup is a role's allow/deny pattern lists.
type PermissionGroup struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// Config is the on-disk auth_config.json document: email-to-role
// assignments, the set of permission-manager emails, the role table, and
// setup state.
type Config struct {
	mu sync.RWMutex

	Emails         map[string]string          `json:"emails"`
	PermManager    []string                   `json:"perm_manager"`
	Perms          map[string]PermissionGroup `json:"perms"`
	SetupCompleted bool                       `json:"setup_completed"`
	AdminEmail     *string                    `json:"admin_email,omitempty"`
}

// Default returns the built-in role table: an admin role that allows
// everything, and a user role limited to SELECT/SHOW/INSERT and
// explicitly barred from DROP/DELETE/ALTER.
func Default() *Config {
	return &Config{
		Emails:      make(map[string]string),
		PermManager: nil,
		Perms: map[string]PermissionGroup{
			"admin": {Allow: []string{"*"}},
			"user": {
				Allow: []string{"SELECT", "SHOW", "INSERT"},
				Deny:  []string{"DROP", "DELETE", "ALTER"},
			},
		},
		SetupCompleted: false,
	}
}

// Load reads auth_config.json from configDir, returning a fresh Default
// config if the file does not yet exist.
func Load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "auth_config.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, dberr.Wrap(dberr.IoError, err, "reading auth config %q", path)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, dberr.Wrap(dberr.IoError, err, "parsing auth config %q", path)
	}
	return &cfg, nil
}

// Save writes the config to auth_config.json under configDir, creating the
// directory if needed.
func (c *Config) Save(configDir string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return dberr.Wrap(dberr.IoError, err, "marshalling auth config")
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return dberr.Wrap(dberr.IoError, err, "creating config directory %q", configDir)
	}
	path := filepath.Join(configDir, "auth_config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return dberr.Wrap(dberr.IoError, err, "writing auth config %q", path)
	}
	return nil
}

// EnsureExists writes a default auth_config.json under configDir if one
// is not already present.
func EnsureExists(configDir string) error {
	path := filepath.Join(configDir, "auth_config.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Default().Save(configDir)
}

// IsSetupCompleted reports whether the one-time admin bootstrap has run.
func (c *Config) IsSetupCompleted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SetupCompleted
}

// CompleteSetup registers adminEmail as the sole admin and permission
// manager, and marks setup complete. InvalidCredentials if setup already
// ran once.
func (c *Config) CompleteSetup(configDir, adminEmail string) error {
	c.mu.Lock()
	if c.SetupCompleted {
		c.mu.Unlock()
		return dberr.New(dberr.InvalidCredentials, "setup already completed")
	}
	c.Emails[adminEmail] = "admin"
	c.PermManager = append(c.PermManager, adminEmail)
	c.AdminEmail = &adminEmail
	c.SetupCompleted = true
	c.mu.Unlock()

	return c.Save(configDir)
}

// AddUser assigns role to email, failing if setup has not run or role is
// unknown.
func (c *Config) AddUser(configDir, email, role string) error {
	c.mu.Lock()
	if !c.SetupCompleted {
		c.mu.Unlock()
		return dberr.New(dberr.PermissionDenied, "setup not completed yet")
	}
	if _, ok := c.Perms[role]; !ok {
		c.mu.Unlock()
		return dberr.New(dberr.ParseError, "unknown role %q", role)
	}
	c.Emails[email] = role
	c.mu.Unlock()

	return c.Save(configDir)
}

// RoleFor returns email's assigned role, or "default" if unassigned.
func (c *Config) RoleFor(email string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if role, ok := c.Emails[email]; ok {
		return role
	}
	return "default"
}

// UserCount returns the number of registered email-to-role assignments.
func (c *Config) UserCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Emails)
}

// AdminEmailAddress returns the bootstrap admin's email, if setup ran.
func (c *Config) AdminEmailAddress() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.AdminEmail == nil {
		return "", false
	}
	return *c.AdminEmail, true
}

// IsPermissionManager reports whether email is in the perm_manager list.
func (c *Config) IsPermissionManager(email string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.PermManager {
		if e == email {
			return true
		}
	}
	return false
}

// CheckSQLPermission reports whether email's role permits the statement's
// leading operation, applying deny patterns before allow patterns (deny
// wins on any match, then allow must match, else denied by default).
func (c *Config) CheckSQLPermission(email, sql string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	role := "default"
	if r, ok := c.Emails[email]; ok {
		role = r
	}

	group, ok := c.Perms[role]
	if !ok {
		group, ok = c.Perms["default"]
		if !ok {
			return false
		}
	}

	operation := ExtractSQLOperation(sql)
	for _, pattern := range group.Deny {
		if MatchesPattern(operation, pattern) {
			return false
		}
	}
	for _, pattern := range group.Allow {
		if MatchesPattern(operation, pattern) {
			return true
		}
	}
	return false
}

// ExtractSQLOperation returns the leading operation keyword of sql,
// combining the first two tokens for the compound forms (CREATE TABLE,
// DROP DATABASE, ALTER TABLE, ...) that permission patterns match
// against.
func ExtractSQLOperation(sql string) string {
	words := strings.Fields(strings.ToUpper(strings.TrimSpace(sql)))
	if len(words) == 0 {
		return ""
	}

	switch words[0] {
	case "CREATE", "DROP", "ALTER":
		if len(words) > 1 {
			switch words[1] {
			case "TABLE", "DATABASE", "INDEX":
				return words[0] + " " + words[1]
			}
		}
		return words[0]
	case "DESCRIBE", "DESC":
		return "DESCRIBE"
	default:
		return words[0]
	}
}

// MatchesPattern reports whether operation matches pattern, where pattern
// is either "*" (matches everything), an exact operation name, or a
// wildcard with "*" at the prefix, suffix, or both ends.
func MatchesPattern(operation, pattern string) bool {
	if pattern == "*" {
		return true
	}
	pattern = strings.ToUpper(pattern)
	if operation == pattern {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	parts := strings.SplitN(pattern, "*", 2)
	prefix, suffix := parts[0], parts[1]
	switch {
	case prefix == "":
		return strings.HasSuffix(operation, suffix)
	case suffix == "":
		return strings.HasPrefix(operation, prefix)
	default:
		return strings.HasPrefix(operation, prefix) && strings.HasSuffix(operation, suffix)
	}
}
