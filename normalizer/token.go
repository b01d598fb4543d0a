package normalizer

import "strings"

// TokenSeparator separates the webhook token from the event suffix some
// providers append to the configured URL ("ABC123/messages-upsert").
const TokenSeparator = "/"

// SplitToken returns the token part and the provider suffix (without separator).
func SplitToken(raw string) (token, suffix string) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, TokenSeparator); i >= 0 {
		return raw[:i], raw[i+len(TokenSeparator):]
	}
	return raw, ""
}
