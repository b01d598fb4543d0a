package normalizer

import (
	"github.com/AzielCF/az-flow/domains/message"
)

// evolutionStatusEvents are envelopes that never carry a new inbound message.
var evolutionStatusEvents = map[string]bool{
	"messages.update":           true,
	"messages.delete":           true,
	"messages.set":              true,
	"messages.edited":           true,
	"send.message":              true,
	"connection.update":         true,
	"qrcode.updated":            true,
	"presence.update":           true,
	"contacts.set":              true,
	"contacts.upsert":           true,
	"contacts.update":           true,
	"chats.set":                 true,
	"chats.upsert":              true,
	"chats.update":              true,
	"chats.delete":              true,
	"groups.upsert":             true,
	"groups.update":             true,
	"group.update":              true,
	"group.participants.update": true,
	"labels.edit":               true,
	"labels.association":        true,
	"call":                      true,
	"application.startup":       true,
	"message.receipt.update":    true,
}

// EvolutionParser understands Evolution API v1/v2 webhooks:
//
//	{"event":"messages.upsert","instance":"x","data":{"key":{...},"message":{...}}}
//	{"event":"MESSAGES_UPSERT","data":{"messages":[{"key":{...},"message":{...}}]}}
//	{"event":"messages.upsert","data":[{"key":{...},"message":{...}}]}
type EvolutionParser struct{}

func (EvolutionParser) Parse(doc map[string]any) (message.InboundMessage, error) {
	event := eventName(str(doc, "event"))
	if evolutionStatusEvents[event] {
		return message.InboundMessage{}, ignore(ReasonStatusUpdate, event)
	}
	if event != "" && event != "messages.upsert" {
		return message.InboundMessage{}, ignore(ReasonUnknownShape, event)
	}

	record := evolutionRecord(doc["data"])
	if record == nil {
		return message.InboundMessage{}, ignore(ReasonUnknownShape, "no message record in data")
	}
	return fromBaileysRecord(record, event)
}

func evolutionRecord(data any) map[string]any {
	d := firstObj(data)
	if d == nil {
		return nil
	}
	if _, ok := d["key"]; ok {
		return d
	}
	if msgs, ok := d["messages"]; ok {
		if rec := firstObj(msgs); rec != nil {
			if _, ok := rec["key"]; ok {
				return rec
			}
		}
	}
	return nil
}

// fromBaileysRecord maps {key:{remoteJid,fromMe,id}, pushName, message:{...}}.
func fromBaileysRecord(record map[string]any, event string) (message.InboundMessage, error) {
	key := obj(record["key"])
	if key == nil {
		return message.InboundMessage{}, ignore(ReasonMalformed, "missing message key")
	}

	remoteJid := str(key, "remoteJid")
	if remoteJid == "status@broadcast" {
		return message.InboundMessage{}, ignore(ReasonStatusUpdate, "status broadcast")
	}

	// Receipt-only records carry a key and a status/update but no message body.
	body := obj(record["message"])
	if body == nil {
		if _, ok := record["update"]; ok {
			return message.InboundMessage{}, ignore(ReasonStatusUpdate, "receipt record")
		}
		if _, ok := record["status"]; ok {
			return message.InboundMessage{}, ignore(ReasonStatusUpdate, "receipt record")
		}
	}

	return message.InboundMessage{
		RemoteJid:  remoteJid,
		Text:       baileysText(body),
		IsSelfEcho: boolean(key, "fromMe"),
		PushName:   str(record, "pushName"),
		MessageID:  str(key, "id"),
		Event:      firstNonEmpty(event, "messages.upsert"),
	}, nil
}
