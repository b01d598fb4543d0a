package normalizer

import (
	"github.com/AzielCF/az-flow/domains/message"
)

var uazapiStatusEvents = map[string]bool{
	"messages.update": true,
	"presence":        true,
	"connection":      true,
	"chats":           true,
	"contacts":        true,
	"call":            true,
	"labels":          true,
	"history":         true,
	"groups":          true,
	"blocks":          true,
	"leads":           true,
	"sender":          true,
}

// UazapiParser understands uazapi webhooks:
//
//	{"EventType":"messages","message":{"chatid":"...","fromMe":false,"isGroup":false,"text":"..."}}
//	{"event":"messages","data":{"key":{...},"message":{...}}}   (legacy, Baileys record)
type UazapiParser struct{}

func (UazapiParser) Parse(doc map[string]any) (message.InboundMessage, error) {
	event := eventName(firstNonEmpty(str(doc, "EventType"), str(doc, "eventType"), str(doc, "event"), str(doc, "type")))
	if uazapiStatusEvents[event] {
		return message.InboundMessage{}, ignore(ReasonStatusUpdate, event)
	}
	if event != "messages" && event != "message" && event != "messages.upsert" {
		return message.InboundMessage{}, ignore(ReasonUnknownShape, event)
	}

	if m := obj(doc["message"]); m != nil {
		return fromUazapiMessage(m, event)
	}
	if rec := evolutionRecord(doc["data"]); rec != nil {
		return fromBaileysRecord(rec, event)
	}
	return message.InboundMessage{}, ignore(ReasonMalformed, "no message object")
}

func fromUazapiMessage(m map[string]any, event string) (message.InboundMessage, error) {
	// Status changes of messages we sent arrive as "messages" with a status and no content.
	text := firstNonEmpty(str(m, "text"), str(m, "content"), str(m, "body"), str(m, "caption"))
	if text == "" && str(m, "status") != "" && str(m, "messageType") == "" {
		return message.InboundMessage{}, ignore(ReasonStatusUpdate, "message status")
	}

	return message.InboundMessage{
		RemoteJid:  firstNonEmpty(str(m, "chatid"), str(m, "chatId"), str(m, "sender")),
		Text:       text,
		IsSelfEcho: boolean(m, "fromMe") || boolean(m, "wasSentByApi"),
		IsGroup:    boolean(m, "isGroup"),
		PushName:   firstNonEmpty(str(m, "senderName"), str(m, "pushName")),
		MessageID:  firstNonEmpty(str(m, "messageid"), str(m, "id")),
		Event:      event,
	}, nil
}
