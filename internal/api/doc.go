// Package api exposes MirseoDB's engine over HTTP: the /query surface,
// health and time probes, the one-time setup flow, and 2FA enrollment
// and verification.
package api
