// Package normalizer turns provider webhook bodies into message.InboundMessage.
package normalizer

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/domains/tenant"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Reasons carried by Ignored.
const (
	ReasonMalformed       = "malformed_payload"
	ReasonUnknownProvider = "unknown_provider"
	ReasonUnknownShape    = "unknown_shape"
	ReasonStatusUpdate    = "status_update"
	ReasonNoText          = "no_text"
	ReasonGroup           = "group_conversation"
	ReasonSelfEcho        = "self_echo"
)

// Ignored signals a payload that carries nothing to answer. Msg holds whatever
// was extracted before the decision (useful for group / self-echo logging).
type Ignored struct {
	Reason string
	Detail string
	Msg    message.InboundMessage
}

func (e *Ignored) Error() string {
	if e.Detail == "" {
		return "ignored: " + e.Reason
	}
	return "ignored: " + e.Reason + " (" + e.Detail + ")"
}

func ignore(reason, detail string) *Ignored {
	return &Ignored{Reason: reason, Detail: detail}
}

// AsIgnored unwraps an *Ignored from err.
func AsIgnored(err error) (*Ignored, bool) {
	var ig *Ignored
	if errors.As(err, &ig) {
		return ig, true
	}
	return nil, false
}

// Parser extracts the canonical message from one provider's envelope.
// Parsers report every non-message envelope as *Ignored.
type Parser interface {
	Parse(doc map[string]any) (message.InboundMessage, error)
}

type Normalizer struct {
	mu      sync.RWMutex
	parsers map[tenant.Provider]Parser
}

// New returns a Normalizer with every built-in provider registered.
func New() *Normalizer {
	n := &Normalizer{parsers: make(map[tenant.Provider]Parser)}
	n.Register(tenant.ProviderEvolution, EvolutionParser{})
	n.Register(tenant.ProviderUazapi, UazapiParser{})
	n.Register(tenant.ProviderWuzapi, WuzapiParser{})
	return n
}

func (n *Normalizer) Register(kind tenant.Provider, p Parser) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parsers[kind] = p
}

// Normalize parses body for the given provider. Any outcome other than a
// direct, non-group text message is returned as *Ignored; it never panics.
func (n *Normalizer) Normalize(kind tenant.Provider, body []byte) (msg message.InboundMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[NORMALIZER] panic while parsing %s payload: %v", kind, r)
			msg, err = message.InboundMessage{}, ignore(ReasonMalformed, "parser panic")
		}
	}()

	n.mu.RLock()
	p, ok := n.parsers[kind]
	n.mu.RUnlock()
	if !ok {
		return message.InboundMessage{}, ignore(ReasonUnknownProvider, string(kind))
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return message.InboundMessage{}, ignore(ReasonMalformed, "body is not a JSON object")
	}

	msg, err = p.Parse(doc)
	if err != nil {
		return message.InboundMessage{}, err
	}

	msg.RemoteJid = strings.TrimSpace(msg.RemoteJid)
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.RemoteJid == "" {
		return message.InboundMessage{}, ignore(ReasonMalformed, "missing remote jid")
	}
	if utils.IsGroupJID(msg.RemoteJid) {
		msg.IsGroup = true
	}

	switch {
	case msg.IsGroup:
		return msg, &Ignored{Reason: ReasonGroup, Msg: msg}
	case msg.IsSelfEcho:
		return msg, &Ignored{Reason: ReasonSelfEcho, Msg: msg}
	case msg.Text == "":
		return msg, &Ignored{Reason: ReasonNoText, Msg: msg}
	}
	return msg, nil
}
