package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-flow/botengine"
	"github.com/AzielCF/az-flow/domains/message"
	"github.com/AzielCF/az-flow/pkg/utils"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DialogflowBaseURL     = "https://dialogflow.googleapis.com"
	dialogflowScope       = "https://www.googleapis.com/auth/cloud-platform"
	defaultDialogflowLang = "pt-BR"
)

// TokenSourceFactory turns service-account JSON into a token source and its project id.
type TokenSourceFactory func(ctx context.Context, credentials []byte) (oauth2.TokenSource, string, error)

// GoogleTokenSource is the production TokenSourceFactory.
func GoogleTokenSource(ctx context.Context, credentials []byte) (oauth2.TokenSource, string, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentials, dialogflowScope)
	if err != nil {
		return nil, "", err
	}
	return creds.TokenSource, creds.ProjectID, nil
}

type dialogflowSource struct {
	tokens    oauth2.TokenSource
	projectID string
}

// Dialogflow is the intent engine: one detectIntent call per inbound message,
// with the digits of the remote JID as the Dialogflow session id.
type Dialogflow struct {
	client   *resty.Client
	newToken TokenSourceFactory

	mu      sync.Mutex
	sources map[string]dialogflowSource // keyed by credentials JSON
}

func NewDialogflow(baseURL string, timeout time.Duration, tokens TokenSourceFactory) *Dialogflow {
	if baseURL == "" {
		baseURL = DialogflowBaseURL
	}
	if tokens == nil {
		tokens = GoogleTokenSource
	}
	return &Dialogflow{
		client:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(timeout),
		newToken: tokens,
		sources:  make(map[string]dialogflowSource),
	}
}

type detectIntentRequest struct {
	QueryInput struct {
		Text struct {
			Text         string `json:"text"`
			LanguageCode string `json:"languageCode"`
		} `json:"text"`
	} `json:"queryInput"`
}

type detectIntentResponse struct {
	ResponseID  string `json:"responseId"`
	QueryResult *struct {
		FulfillmentText     string `json:"fulfillmentText"`
		FulfillmentMessages []struct {
			Text *struct {
				Text []string `json:"text"`
			} `json:"text"`
		} `json:"fulfillmentMessages"`
	} `json:"queryResult"`
}

func (d *Dialogflow) Respond(ctx context.Context, req botengine.Request) (botengine.Reply, error) {
	src, err := d.source(req.Credentials)
	if err != nil {
		return botengine.Reply{}, err
	}
	token, err := src.tokens.Token()
	if err != nil {
		return botengine.Reply{}, fmt.Errorf("dialogflow token: %w", err)
	}

	sessionID := utils.DigitsOnly(req.RemoteJid)
	if sessionID == "" {
		return botengine.Reply{}, fmt.Errorf("dialogflow: remote jid %q has no digits", req.RemoteJid)
	}

	var body detectIntentRequest
	body.QueryInput.Text.Text = req.Text
	body.QueryInput.Text.LanguageCode = req.Language
	if body.QueryInput.Text.LanguageCode == "" {
		body.QueryInput.Text.LanguageCode = defaultDialogflowLang
	}

	var out detectIntentResponse
	path := fmt.Sprintf("/v2/projects/%s/agent/sessions/%s:detectIntent", url.PathEscape(src.projectID), sessionID)
	resp, err := d.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return botengine.Reply{}, fmt.Errorf("dialogflow request: %w", err)
	}
	if resp.IsError() {
		return botengine.Reply{}, fmt.Errorf("dialogflow returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if out.QueryResult == nil {
		return botengine.Reply{}, fmt.Errorf("dialogflow response has no queryResult")
	}

	var frags []message.ReplyFragment
	for _, m := range out.QueryResult.FulfillmentMessages {
		if m.Text == nil {
			continue
		}
		for _, t := range m.Text.Text {
			if strings.TrimSpace(t) != "" {
				frags = append(frags, message.Text(t))
			}
		}
	}
	if len(frags) == 0 && strings.TrimSpace(out.QueryResult.FulfillmentText) != "" {
		frags = append(frags, message.Text(out.QueryResult.FulfillmentText))
	}

	logrus.WithFields(logrus.Fields{
		"tenant":      req.TenantID,
		"response_id": out.ResponseID,
		"fragments":   len(frags),
	}).Debug("[DIALOGFLOW] detectIntent done")
	return botengine.Reply{Fragments: frags}, nil
}

func (d *Dialogflow) source(credentials string) (dialogflowSource, error) {
	if strings.TrimSpace(credentials) == "" {
		return dialogflowSource{}, fmt.Errorf("dialogflow: empty credentials")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if src, ok := d.sources[credentials]; ok {
		return src, nil
	}

	// background context: the token source outlives this request
	ts, projectID, err := d.newToken(context.Background(), []byte(credentials))
	if err != nil {
		return dialogflowSource{}, fmt.Errorf("dialogflow credentials: %w", err)
	}
	if projectID == "" {
		var raw struct {
			ProjectID string `json:"project_id"`
		}
		_ = json.Unmarshal([]byte(credentials), &raw)
		projectID = raw.ProjectID
	}
	if projectID == "" {
		return dialogflowSource{}, fmt.Errorf("dialogflow credentials have no project_id")
	}

	src := dialogflowSource{tokens: oauth2.ReuseTokenSource(nil, ts), projectID: projectID}
	d.sources[credentials] = src
	return src, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
