package botengine

import (
	"context"

	"github.com/AzielCF/az-flow/domains/message"
)

// Request is one inbound turn as seen by an engine provider.
type Request struct {
	TenantID          string
	RemoteJid         string
	Text              string
	Language          string
	ContinuationToken string // opaque flow-engine session handle, empty on first turn
	Credentials       string // decrypted BotConfig credentials (JSON)
}

// Reply is what a provider produced for one turn. A changed ContinuationToken
// is persisted by the Engine.
type Reply struct {
	Fragments         []message.ReplyFragment
	ContinuationToken string
}

// Provider is implemented by every conversational engine variant (intent, flow, generative).
type Provider interface {
	Respond(ctx context.Context, req Request) (Reply, error)
}
