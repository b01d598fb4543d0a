package normalizer

import (
	"strings"
)

// Helpers for walking untyped JSON documents.

func obj(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func field(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		cm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = cm[p]
	}
	return cur
}

func str(m map[string]any, path ...string) string {
	switch v := field(m, path...).(type) {
	case string:
		return v
	case map[string]any:
		// {"text": "..."} content blocks
		if s, ok := v["text"].(string); ok {
			return s
		}
	}
	return ""
}

func boolean(m map[string]any, path ...string) bool {
	switch v := field(m, path...).(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case float64:
		return v != 0
	}
	return false
}

// firstObj returns v itself when it is an object, or its first element when it is an array.
func firstObj(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			return obj(t[0])
		}
	}
	return nil
}

// eventName folds "MESSAGES_UPSERT", "messages-upsert" and "messages.upsert" together.
func eventName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", ".", "-", ".").Replace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// baileysText pulls the human text out of a WhatsApp web message object
// (the shape Evolution, legacy uazapi and wuzapi all forward).
func baileysText(msg map[string]any) string {
	if msg == nil {
		return ""
	}
	for _, wrapper := range []string{"ephemeralMessage", "viewOnceMessage", "viewOnceMessageV2", "documentWithCaptionMessage", "editedMessage"} {
		if inner := obj(field(msg, wrapper, "message")); inner != nil {
			if t := baileysText(inner); t != "" {
				return t
			}
		}
	}
	return firstNonEmpty(
		str(msg, "conversation"),
		str(msg, "extendedTextMessage", "text"),
		str(msg, "imageMessage", "caption"),
		str(msg, "videoMessage", "caption"),
		str(msg, "documentMessage", "caption"),
		str(msg, "buttonsResponseMessage", "selectedDisplayText"),
		str(msg, "templateButtonReplyMessage", "selectedDisplayText"),
		str(msg, "listResponseMessage", "title"),
		str(msg, "listResponseMessage", "singleSelectReply", "selectedRowId"),
	)
}
