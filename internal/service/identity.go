package service

import (
	"path/filepath"
	"strings"
)

const identityDomain = "@s.whatsapp.net"

// TempIdentity derives the provisional registry key used between the pairing
// request and the first successful open, while the account id is unknown.
func TempIdentity(phoneNumber string) string {
	return "pending:" + phoneNumber
}

// IsTempIdentity reports whether identity is a provisional pairing key.
func IsTempIdentity(identity string) bool {
	return strings.HasPrefix(identity, "pending:")
}

// PermanentIdentity derives the long-term session key from the transport's
// raw account identifier. It reports false while the identifier is not yet
// available, which is expected on early connection events.
func PermanentIdentity(accountID string) (string, bool) {
	raw := strings.TrimSpace(accountID)
	if raw == "" {
		return "", false
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "", false
	}
	return raw + identityDomain, true
}

// credentialDir maps an identity to its private credential storage path.
// Separator-like characters are flattened so the key stays a single path
// element.
func credentialDir(root, identity string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '_'
		default:
			return r
		}
	}, identity)
	return filepath.Join(root, safe)
}
