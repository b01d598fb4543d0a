package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AzielCF/az-flow/botengine"
	"github.com/AzielCF/az-flow/domains/message"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// TypebotCredentials is the decrypted BotConfig payload of a flow engine.
type TypebotCredentials struct {
	BaseURL  string `json:"base_url"`
	PublicID string `json:"public_id"`
	APIToken string `json:"api_token,omitempty"`
}

var errTypebotSessionGone = errors.New("typebot session expired")

// Typebot is the flow engine: startChat on the first turn, continueChat with the
// stored session id afterwards. Only text bubbles are forwarded.
type Typebot struct {
	client *resty.Client
}

func NewTypebot(timeout time.Duration) *Typebot {
	return &Typebot{client: resty.New().SetTimeout(timeout)}
}

type typebotMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type typebotChatRequest struct {
	Message typebotMessage `json:"message"`
}

type typebotChatResponse struct {
	SessionID string `json:"sessionId"`
	Messages  []struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type typebotTextContent struct {
	RichText []richTextNode `json:"richText"`
	Markdown string         `json:"markdown"`
}

type richTextNode struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Children []richTextNode `json:"children"`
}

func (t *Typebot) Respond(ctx context.Context, req botengine.Request) (botengine.Reply, error) {
	var creds TypebotCredentials
	if err := json.Unmarshal([]byte(req.Credentials), &creds); err != nil {
		return botengine.Reply{}, fmt.Errorf("typebot credentials: %w", err)
	}
	if creds.BaseURL == "" || creds.PublicID == "" {
		return botengine.Reply{}, fmt.Errorf("typebot credentials need base_url and public_id")
	}

	if req.ContinuationToken != "" {
		out, err := t.continueChat(ctx, creds, req.ContinuationToken, req.Text)
		if err == nil {
			return t.reply(out, req.ContinuationToken), nil
		}
		if !errors.Is(err, errTypebotSessionGone) {
			return botengine.Reply{}, err
		}
		logrus.WithFields(logrus.Fields{"tenant": req.TenantID, "jid": req.RemoteJid}).
			Info("[TYPEBOT] session expired, restarting flow")
	}

	out, err := t.startChat(ctx, creds, req.Text)
	if err != nil {
		return botengine.Reply{}, err
	}
	if out.SessionID == "" {
		return botengine.Reply{}, fmt.Errorf("typebot startChat returned no sessionId")
	}
	return t.reply(out, out.SessionID), nil
}

func (t *Typebot) startChat(ctx context.Context, creds TypebotCredentials, text string) (typebotChatResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/typebots/%s/startChat", strings.TrimRight(creds.BaseURL, "/"), url.PathEscape(creds.PublicID))
	return t.post(ctx, creds, endpoint, text)
}

func (t *Typebot) continueChat(ctx context.Context, creds TypebotCredentials, sessionID, text string) (typebotChatResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v1/sessions/%s/continueChat", strings.TrimRight(creds.BaseURL, "/"), url.PathEscape(sessionID))
	return t.post(ctx, creds, endpoint, text)
}

func (t *Typebot) post(ctx context.Context, creds TypebotCredentials, endpoint, text string) (typebotChatResponse, error) {
	var out typebotChatResponse
	r := t.client.R().
		SetContext(ctx).
		SetBody(typebotChatRequest{Message: typebotMessage{Type: "text", Text: text}}).
		SetResult(&out)
	if creds.APIToken != "" {
		r.SetAuthToken(creds.APIToken)
	}

	resp, err := r.Post(endpoint)
	if err != nil {
		return out, fmt.Errorf("typebot request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound && strings.Contains(endpoint, "/sessions/") {
		return out, errTypebotSessionGone
	}
	if resp.IsError() {
		return out, fmt.Errorf("typebot returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return out, nil
}

func (t *Typebot) reply(out typebotChatResponse, token string) botengine.Reply {
	var frags []message.ReplyFragment
	for _, m := range out.Messages {
		if m.Type != "text" {
			continue
		}
		var content typebotTextContent
		if err := json.Unmarshal(m.Content, &content); err != nil {
			continue
		}
		text := flattenRichText(content.RichText)
		if text == "" {
			text = strings.TrimSpace(content.Markdown)
		}
		if text != "" {
			frags = append(frags, message.Text(text))
		}
	}
	return botengine.Reply{Fragments: frags, ContinuationToken: token}
}

// flattenRichText joins top-level blocks with newlines and inline children without separator.
func flattenRichText(blocks []richTextNode) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, inlineText(b))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func inlineText(n richTextNode) string {
	if len(n.Children) == 0 {
		return n.Text
	}
	var sb strings.Builder
	sb.WriteString(n.Text)
	for _, c := range n.Children {
		sb.WriteString(inlineText(c))
	}
	return sb.String()
}
