package drafting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"campuscore/pkg/domain"
)

const (
	// DefaultGeminiEndpoint is the public Generative Language API root.
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Gemini implements Generator over the Gemini generateContent REST API with
// a JSON response schema.
type Gemini struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// NewGemini returns a Gemini generator, or nil when apiKey is blank so that
// callers treat the capability as absent. A nil httpClient uses
// http.DefaultClient.
func NewGemini(httpClient *http.Client, endpoint, model, apiKey string) *Gemini {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   map[string]any `json:"responseSchema"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var draftSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"title":       map[string]any{"type": "STRING", "description": "Short ticket title"},
		"description": map[string]any{"type": "STRING", "description": "Detailed description of the faults and required actions"},
		"priority":    map[string]any{"type": "STRING", "enum": []string{"low", "medium", "high"}},
	},
	"required": []string{"title", "description", "priority"},
}

// Generate sends the prompt for req and decodes the structured draft.
func (g *Gemini) Generate(ctx context.Context, req Request) (domain.TicketDraft, error) {
	var wire geminiRequest
	wire.Contents = []geminiContent{{Parts: []geminiPart{{Text: Prompt(req)}}}}
	wire.GenerationConfig.ResponseMimeType = "application/json"
	wire.GenerationConfig.ResponseSchema = draftSchema

	body, err := json.Marshal(wire)
	if err != nil {
		return domain.TicketDraft{}, fmt.Errorf("gemini: marshaling request: %w", err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.TicketDraft{}, fmt.Errorf("gemini: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("x-goog-api-key", g.apiKey)

	httpResponse, err := g.httpClient.Do(httpRequest)
	if err != nil {
		return domain.TicketDraft{}, fmt.Errorf("gemini: sending request: %w", err)
	}
	defer func() { _ = httpResponse.Body.Close() }()
	if httpResponse.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))
		return domain.TicketDraft{}, fmt.Errorf("gemini: status %d: %s", httpResponse.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&decoded); err != nil {
		return domain.TicketDraft{}, fmt.Errorf("gemini: decoding response: %w", err)
	}
	text := decoded.text()
	if text == "" {
		return domain.TicketDraft{}, errors.New("gemini: empty response")
	}
	var draft struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return domain.TicketDraft{}, fmt.Errorf("gemini: decoding draft: %w", err)
	}
	return domain.TicketDraft{
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    NormalizePriority(draft.Priority),
	}, nil
}

func (r geminiResponse) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
