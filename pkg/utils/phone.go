package utils

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// DigitsOnly strips everything but 0-9.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// IsGroupJID reports whether jid addresses a group conversation.
func IsGroupJID(jid string) bool {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return false
	}
	if parsed, err := types.ParseJID(jid); err == nil && parsed.Server == types.GroupServer {
		return true
	}
	return strings.HasSuffix(jid, "@"+types.GroupServer)
}

// PhoneFromJID reduces "5511999999999:12@s.whatsapp.net" to "5511999999999".
// Plain phone numbers are returned digits-only.
func PhoneFromJID(jid string) string {
	user := jid
	if at := strings.Index(user, "@"); at >= 0 {
		user = user[:at]
	}
	if colon := strings.Index(user, ":"); colon >= 0 {
		user = user[:colon]
	}
	return DigitsOnly(user)
}

// ToUserJID builds a user JID from a phone number or returns jid unchanged when it already has a server.
func ToUserJID(phoneOrJID string) string {
	if strings.Contains(phoneOrJID, "@") {
		return phoneOrJID
	}
	return types.NewJID(DigitsOnly(phoneOrJID), types.DefaultUserServer).String()
}
