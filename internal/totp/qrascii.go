package totp

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

const qrSize = 17

// ASCIIQRCode renders a schematic (non-scannable) block-art representation
// of otpauthURL, for terminals and clients with no image rendering. This
// is a display aid, not a real QR code; the secret is always shown
// alongside for manual entry.
func ASCIIQRCode(otpauthURL string) string {
	hash := sha1.Sum([]byte(otpauthURL))

	var b strings.Builder
	b.WriteString("+-- MirseoDB 2FA Setup --+\n")
	b.WriteString("| Scan with authenticator |\n")
	b.WriteString("| app (Google, Authy, etc)|\n")
	b.WriteString("+-------------------------+\n")

	for y := 0; y < qrSize; y++ {
		b.WriteString("| ")
		for x := 0; x < qrSize; x++ {
			idx := (y*qrSize + x) / 8 % len(hash)
			bit := (y*qrSize + x) % 8
			if (hash[idx]>>uint(bit))&1 == 1 {
				b.WriteByte('#')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |\n")
	}

	b.WriteString("+-------------------------+\n")
	b.WriteString("| Manual setup key:       |\n")
	if secret, ok := extractSecretParam(otpauthURL); ok {
		fmt.Fprintf(&b, "| %-23s |\n", secret)
	}
	b.WriteString("+-------------------------+\n")

	return b.String()
}

func extractSecretParam(otpauthURL string) (string, bool) {
	parts := strings.SplitN(otpauthURL, "?", 2)
	if len(parts) < 2 {
		return "", false
	}
	for _, param := range strings.Split(parts[1], "&") {
		if secret, ok := strings.CutPrefix(param, "secret="); ok {
			return secret, true
		}
	}
	return "", false
}
