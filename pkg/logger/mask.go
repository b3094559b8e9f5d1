package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// MaskSecret replaces a credential with a short stable fingerprint so log
// lines can be correlated without exposing the value.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "secret#" + fingerprint(secret)
}

// MaskEndpoint keeps the scheme and host of an API URL and hides the rest
func MaskEndpoint(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "endpoint#" + fingerprint(rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host + "/#" + fingerprint(rawURL)
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
