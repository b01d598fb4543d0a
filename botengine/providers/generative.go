package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AzielCF/az-flow/botengine"
	"github.com/AzielCF/az-flow/domains/message"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4o-mini"
)

// GenerativeCredentials is the decrypted BotConfig payload of a generative engine.
type GenerativeCredentials struct {
	Provider     string `json:"provider"` // gemini | openai
	APIKey       string `json:"api_key"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	BaseURL      string `json:"base_url,omitempty"` // OpenAI-compatible gateways
	History      int    `json:"history,omitempty"`  // turns kept per conversation, 0 = stateless
}

// Completer produces one model answer.
type Completer func(ctx context.Context, creds GenerativeCredentials, history []botengine.ChatTurn, text string) (string, error)

// Generative answers with an LLM. The reply is a single text fragment.
type Generative struct {
	completers map[string]Completer
	memory     *botengine.MemoryStore
}

func NewGenerative(memory *botengine.MemoryStore) *Generative {
	if memory == nil {
		memory = botengine.NewMemoryStore()
	}
	return &Generative{
		completers: map[string]Completer{
			"gemini": geminiComplete,
			"openai": openAIComplete,
		},
		memory: memory,
	}
}

// WithCompleter replaces the backend for one provider name.
func (g *Generative) WithCompleter(name string, c Completer) *Generative {
	g.completers[name] = c
	return g
}

func (g *Generative) Respond(ctx context.Context, req botengine.Request) (botengine.Reply, error) {
	var creds GenerativeCredentials
	if err := json.Unmarshal([]byte(req.Credentials), &creds); err != nil {
		return botengine.Reply{}, fmt.Errorf("generative credentials: %w", err)
	}
	if creds.Provider == "" {
		creds.Provider = "gemini"
	}
	complete, ok := g.completers[strings.ToLower(creds.Provider)]
	if !ok {
		return botengine.Reply{}, fmt.Errorf("generative provider %q not supported", creds.Provider)
	}
	if creds.APIKey == "" {
		return botengine.Reply{}, fmt.Errorf("generative credentials have no api_key")
	}

	key := botengine.ConversationKey(req.TenantID, req.RemoteJid)
	var history []botengine.ChatTurn
	if creds.History > 0 {
		history = g.memory.Get(key)
	}

	answer, err := complete(ctx, creds, history, req.Text)
	if err != nil {
		return botengine.Reply{}, err
	}
	answer = strings.TrimSpace(answer)

	if creds.History > 0 {
		g.memory.Append(key, creds.History,
			botengine.ChatTurn{Role: "user", Text: req.Text},
			botengine.ChatTurn{Role: "assistant", Text: answer},
		)
	}
	if answer == "" {
		return botengine.Reply{}, nil
	}
	return botengine.Reply{Fragments: []message.ReplyFragment{message.Text(answer)}}, nil
}

func geminiComplete(ctx context.Context, creds GenerativeCredentials, history []botengine.ChatTurn, text string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  creds.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	model := creds.Model
	if model == "" {
		model = defaultGeminiModel
	}

	var cfg *genai.GenerateContentConfig
	if creds.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(creds.SystemPrompt, ""),
		}
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.RoleUser
		if t.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})

	result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	logrus.WithField("model", model).Debug("[GEMINI] completion done")
	return result.Text(), nil
}

func openAIComplete(ctx context.Context, creds GenerativeCredentials, history []botengine.ChatTurn, text string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := creds.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if creds.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(creds.SystemPrompt))
	}
	for _, t := range history {
		if t.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(t.Text))
		} else {
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	messages = append(messages, openai.UserMessage(text))

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	logrus.WithField("model", model).Debug("[OPENAI] completion done")
	return completion.Choices[0].Message.Content, nil
}
