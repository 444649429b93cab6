package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RouteConfig mirrors route.cfg: key=value lines, # comments. The only
// recognised key is "fallback", the URL unparseable statements are
// forwarded to.
type RouteConfig struct {
	Fallback string
}

// LoadRouteConfig reads <dir>/route.cfg. A missing file yields the zero
// config, not an error — routing is optional.
func LoadRouteConfig(dir string) (*RouteConfig, error) {
	kv, err := loadKeyValueFile(filepath.Join(dir, "route.cfg"))
	if err != nil {
		return nil, err
	}
	return &RouteConfig{Fallback: kv["fallback"]}, nil
}

// SaveRouteConfig writes <dir>/route.cfg.
func SaveRouteConfig(dir string, rc *RouteConfig) error {
	var b strings.Builder
	b.WriteString("# MirseoDB routing config\n")
	b.WriteString("fallback=" + rc.Fallback + "\n")
	return os.WriteFile(filepath.Join(dir, "route.cfg"), []byte(b.String()), 0o644)
}

// InstanceSettings mirrors config.cfg: key=value lines, # comments. The
// recognised key is SQL_INJECTON_PROTECT (sic — the key name is part of
// the on-disk format), accepted as 0/1/true/false, default on.
type InstanceSettings struct {
	SQLInjectionProtect bool
}

// LoadInstanceSettings reads <dir>/config.cfg. A missing file yields the
// defaults (protection on).
func LoadInstanceSettings(dir string) (*InstanceSettings, error) {
	settings := &InstanceSettings{SQLInjectionProtect: true}
	kv, err := loadKeyValueFile(filepath.Join(dir, "config.cfg"))
	if err != nil {
		return nil, err
	}
	if raw, ok := kv["SQL_INJECTON_PROTECT"]; ok {
		on, err := parseBoolFlag(raw)
		if err != nil {
			return nil, fmt.Errorf("config.cfg: %w", err)
		}
		settings.SQLInjectionProtect = on
	}
	return settings, nil
}

// SaveInstanceSettings writes <dir>/config.cfg.
func SaveInstanceSettings(dir string, s *InstanceSettings) error {
	var b strings.Builder
	b.WriteString("# MirseoDB instance settings\n")
	b.WriteString("SQL_INJECTON_PROTECT=" + boolFlag(s.SQLInjectionProtect) + "\n")
	return os.WriteFile(filepath.Join(dir, "config.cfg"), []byte(b.String()), 0o644)
}

func loadKeyValueFile(path string) (map[string]string, error) {
	out := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out, sc.Err()
}

func parseBoolFlag(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
