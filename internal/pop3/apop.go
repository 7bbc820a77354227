package pop3

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// apopChallenge extracts the "<...>" token (brackets included) from a POP3
// banner, or "" if the banner carried none (§4.D BannerRead).
func apopChallenge(banner string) string {
	start := strings.IndexByte(banner, '<')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(banner[start:], '>')
	if end < 0 {
		return ""
	}
	return banner[start : start+end+1]
}

// apopDigest computes the RFC 1939 APOP digest: 32 lowercase hex characters
// of MD5(challenge || password), where challenge includes its angle
// brackets (§6).
func apopDigest(challenge, password string) string {
	sum := md5.Sum([]byte(challenge + password))
	return hex.EncodeToString(sum[:])
}
