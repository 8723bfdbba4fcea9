package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/minios-linux/langsync/config"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGroq         = "groq"
	ProviderMistral      = "mistral"
	ProviderDeepSeek     = "deepseek"
	ProviderXAI          = "xai"
	ProviderOpenRouter   = "openrouter"
	ProviderCustomOpenAI = "custom-openai"
	ProviderAnthropic    = "anthropic"
	ProviderGemini       = "gemini"
	ProviderGoogle       = "google"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// API formats
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // chat/completions with response_format json_schema
	formatAnthropic                     // messages with a forced tool call
	formatGeminiNative                  // generateContent with responseSchema
	formatOllama                        // /api/chat with format
)

// Provider describes how to reach one AI service.
type Provider struct {
	ID      string
	Name    string
	BaseURL string
	format  apiFormat
}

// DefaultProviders returns the known provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI:       {ID: ProviderOpenAI, Name: "OpenAI", BaseURL: "https://api.openai.com/v1"},
		ProviderGroq:         {ID: ProviderGroq, Name: "Groq", BaseURL: "https://api.groq.com/openai/v1"},
		ProviderMistral:      {ID: ProviderMistral, Name: "Mistral", BaseURL: "https://api.mistral.ai/v1"},
		ProviderDeepSeek:     {ID: ProviderDeepSeek, Name: "DeepSeek", BaseURL: "https://api.deepseek.com/v1"},
		ProviderXAI:          {ID: ProviderXAI, Name: "xAI", BaseURL: "https://api.x.ai/v1"},
		ProviderOpenRouter:   {ID: ProviderOpenRouter, Name: "OpenRouter", BaseURL: "https://openrouter.ai/api/v1"},
		ProviderCustomOpenAI: {ID: ProviderCustomOpenAI, Name: "Custom OpenAI"},
		ProviderAnthropic:    {ID: ProviderAnthropic, Name: "Anthropic", BaseURL: "https://api.anthropic.com/v1", format: formatAnthropic},
		ProviderGemini:       {ID: ProviderGemini, Name: "Google AI (Gemini)", BaseURL: "https://generativelanguage.googleapis.com", format: formatGeminiNative},
		ProviderGoogle:       {ID: ProviderGoogle, Name: "Google AI (Gemini)", BaseURL: "https://generativelanguage.googleapis.com", format: formatGeminiNative},
		ProviderOllama:       {ID: ProviderOllama, Name: "Ollama", BaseURL: "http://localhost:11434", format: formatOllama},
	}
}

// Request is one structured-output completion.
type Request struct {
	// Name identifies the schema to providers that require one.
	Name         string
	SystemPrompt string
	UserPrompt   string
	Schema       *jsonschema.Schema
}

// Completer returns a JSON document conforming to req.Schema.
type Completer interface {
	Structured(ctx context.Context, req Request) (json.RawMessage, error)
}

// Client calls a provider over HTTP. Each call is a single attempt.
type Client struct {
	Provider Provider
	Model    string
	APIKey   string
	http     *resty.Client
}

// NewClient builds a Client from the AI settings.
func NewClient(ai config.AI) (*Client, error) {
	id := strings.ToLower(strings.TrimSpace(ai.Provider))
	prov, ok := DefaultProviders()[id]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q", ai.Provider)
	}
	if ai.BaseURL != "" {
		prov.BaseURL = ai.BaseURL
	}
	if prov.BaseURL == "" {
		return nil, fmt.Errorf("provider %s requires ai.base_url", id)
	}
	if ai.Model == "" {
		return nil, fmt.Errorf("provider %s requires a model", id)
	}

	timeout := ai.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		Provider: prov,
		Model:    ai.Model,
		APIKey:   ai.APIKey,
		http:     resty.New().SetTimeout(timeout),
	}, nil
}

// Structured sends req and returns the provider's JSON answer.
func (c *Client) Structured(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Name == "" {
		req.Name = "translations"
	}
	endpoint, headers, body, err := c.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.Provider.Name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s returned %s: %s", c.Provider.Name, resp.Status(), truncate(resp.String(), 500))
	}

	text, err := extractResponseText(resp.Body())
	if err != nil {
		return nil, err
	}
	return cleanJSON(text)
}

// buildRequest constructs the endpoint, headers and body for the provider's format.
func (c *Client) buildRequest(req Request) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	base := strings.TrimRight(c.Provider.BaseURL, "/")

	var (
		endpoint string
		body     []byte
		err      error
	)
	switch c.Provider.format {
	case formatAnthropic:
		endpoint = base + "/messages"
		if c.APIKey != "" {
			headers["x-api-key"] = c.APIKey
		}
		headers["anthropic-version"] = "2023-06-01"
		body, err = buildAnthropicRequest(c.Model, req)

	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, c.Model)
		if c.APIKey != "" {
			headers["x-goog-api-key"] = c.APIKey
		}
		body, err = buildGeminiRequest(req)

	case formatOllama:
		endpoint = base + "/api/chat"
		body, err = buildOllamaRequest(c.Model, req)

	default:
		endpoint = base
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if c.APIKey != "" {
			headers["Authorization"] = "Bearer " + c.APIKey
		}
		body, err = buildOpenAIChatRequest(c.Model, req)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// ---------------------------------------------------------------------------
// Request builders for each API format
// ---------------------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildOpenAIChatRequest(model string, req Request) ([]byte, error) {
	type jsonSchemaFormat struct {
		Name   string             `json:"name"`
		Schema *jsonschema.Schema `json:"schema"`
	}
	type responseFormat struct {
		Type       string           `json:"type"`
		JSONSchema jsonSchemaFormat `json:"json_schema"`
	}
	return json.Marshal(struct {
		Model          string         `json:"model"`
		Messages       []chatMessage  `json:"messages"`
		ResponseFormat responseFormat `json:"response_format"`
	}{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaFormat{Name: req.Name, Schema: req.Schema},
		},
	})
}

func buildAnthropicRequest(model string, req Request) ([]byte, error) {
	type tool struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		InputSchema *jsonschema.Schema `json:"input_schema"`
	}
	type toolChoice struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	return json.Marshal(struct {
		Model      string        `json:"model"`
		MaxTokens  int           `json:"max_tokens"`
		System     string        `json:"system,omitempty"`
		Messages   []chatMessage `json:"messages"`
		Tools      []tool        `json:"tools"`
		ToolChoice toolChoice    `json:"tool_choice"`
	}{
		Model:     model,
		MaxTokens: 8192,
		System:    req.SystemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: req.UserPrompt}},
		Tools: []tool{{
			Name:        req.Name,
			Description: "Return the translations in the required structure.",
			InputSchema: req.Schema,
		}},
		ToolChoice: toolChoice{Type: "tool", Name: req.Name},
	})
}

func buildGeminiRequest(req Request) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		ResponseMimeType string             `json:"responseMimeType"`
		ResponseSchema   *jsonschema.Schema `json:"responseSchema"`
	}
	r := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.UserPrompt}}}},
		GenerationConfig: genConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		},
	}
	if req.SystemPrompt != "" {
		r.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	return json.Marshal(r)
}

func buildOllamaRequest(model string, req Request) ([]byte, error) {
	return json.Marshal(struct {
		Model    string             `json:"model"`
		Messages []chatMessage      `json:"messages"`
		Stream   bool               `json:"stream"`
		Format   *jsonschema.Schema `json:"format"`
	}{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Format: req.Schema,
	})
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText returns the structured answer from any supported
// response shape. Anthropic tool input is returned re-encoded as JSON.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	// Anthropic: content[].type=="tool_use" -> .input
	if contentArr, ok := raw["content"].([]any); ok {
		for _, c := range contentArr {
			block, ok := c.(map[string]any)
			if !ok || block["type"] != "tool_use" {
				continue
			}
			input, err := json.Marshal(block["input"])
			if err != nil {
				return "", fmt.Errorf("encoding tool input: %w", err)
			}
			return string(input), nil
		}
	}

	// Ollama: message.content
	if message, ok := raw["message"].(map[string]any); ok {
		if content, ok := message["content"].(string); ok {
			return content, nil
		}
	}

	return "", fmt.Errorf("could not extract structured output from response: %s", truncate(string(body), 500))
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// cleanJSON strips markdown fences and surrounding prose from a model answer.
func cleanJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("response contains no JSON object: %s", truncate(content, 300))
	}
	content = content[start : end+1]
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("response is not valid JSON: %s", truncate(content, 300))
	}
	return json.RawMessage(content), nil
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8
// sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
