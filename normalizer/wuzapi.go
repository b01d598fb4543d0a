package normalizer

import (
	"encoding/json"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/pkg/utils"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/encoding/protojson"
)

var wuzapiStatusTypes = map[string]bool{
	"readreceipt":          true,
	"receipt":              true,
	"chatpresence":         true,
	"presence":             true,
	"historysync":          true,
	"connected":            true,
	"disconnected":         true,
	"qr":                   true,
	"pairsuccess":          true,
	"loggedout":            true,
	"calloffer":            true,
	"undecryptablemessage": true,
	"message.read":         true,
	"message.delivered":    true,
	"message.sent":         true,
}

var protoOpts = protojson.UnmarshalOptions{DiscardUnknown: true, AllowPartial: true}

// WuzapiParser understands wuzapi (whatsmeow based) webhooks:
//
//	{"type":"Message","event":{"Info":{"Chat":"...","IsFromMe":false,"IsGroup":false},"Message":{...}}}
//	{"event":"message.received","message":{"from":"5511...","text":"..."}}   (integration relay)
type WuzapiParser struct{}

func (WuzapiParser) Parse(doc map[string]any) (message.InboundMessage, error) {
	kind := eventName(str(doc, "type"))
	if kind == "" {
		kind = eventName(str(doc, "event"))
	}
	if wuzapiStatusTypes[kind] {
		return message.InboundMessage{}, ignore(ReasonStatusUpdate, kind)
	}

	switch kind {
	case "message":
		ev := obj(doc["event"])
		info := obj(field(ev, "Info"))
		if info == nil {
			return message.InboundMessage{}, ignore(ReasonMalformed, "missing event.Info")
		}
		return message.InboundMessage{
			RemoteJid:  str(info, "Chat"),
			Text:       wuzapiText(field(ev, "Message")),
			IsSelfEcho: boolean(info, "IsFromMe"),
			IsGroup:    boolean(info, "IsGroup"),
			PushName:   str(info, "PushName"),
			MessageID:  str(info, "ID"),
			Event:      "Message",
		}, nil
	case "message.received":
		m := obj(doc["message"])
		if m == nil {
			return message.InboundMessage{}, ignore(ReasonMalformed, "missing message")
		}
		from := firstNonEmpty(str(m, "chat"), str(m, "from"))
		if from == "" {
			return message.InboundMessage{}, ignore(ReasonMalformed, "missing sender")
		}
		return message.InboundMessage{
			RemoteJid:  utils.ToUserJID(from),
			Text:       firstNonEmpty(str(m, "text"), str(m, "body")),
			IsSelfEcho: boolean(m, "fromMe"),
			IsGroup:    boolean(m, "isGroup"),
			PushName:   str(m, "pushName"),
			MessageID:  str(m, "id"),
			Event:      kind,
		}, nil
	}
	return message.InboundMessage{}, ignore(ReasonUnknownShape, kind)
}

// wuzapiText decodes the forwarded waE2E.Message. wuzapi serializes the protobuf
// struct with encoding/json, whose field names protojson accepts; anything it
// rejects falls back to a plain map walk.
func wuzapiText(raw any) string {
	m := obj(raw)
	if m == nil {
		return ""
	}
	if data, err := json.Marshal(m); err == nil {
		var pb waE2E.Message
		if protoOpts.Unmarshal(data, &pb) == nil {
			if t := protoText(&pb); t != "" {
				return t
			}
		}
	}
	return baileysText(m)
}

func protoText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if inner := m.GetEphemeralMessage().GetMessage(); inner != nil {
		return protoText(inner)
	}
	if inner := m.GetViewOnceMessage().GetMessage(); inner != nil {
		return protoText(inner)
	}
	return firstNonEmpty(
		m.GetConversation(),
		m.GetExtendedTextMessage().GetText(),
		m.GetImageMessage().GetCaption(),
		m.GetVideoMessage().GetCaption(),
		m.GetDocumentMessage().GetCaption(),
		m.GetButtonsResponseMessage().GetSelectedDisplayText(),
		m.GetListResponseMessage().GetTitle(),
	)
}
