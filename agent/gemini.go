package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// groupsResponseSchema constrains the Gemini answer to the groups contract.
var groupsResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"groups": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"group": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"group", "description"},
			},
		},
	},
	Required: []string{"groups"},
}

// GeminiInvoker answers the matchmaking turn with a single structured
// GenerateContent call.
type GeminiInvoker struct {
	Config Config
	client *genai.Client
	usage  *UsageTracker
}

// NewGeminiInvoker creates an invoker for the given model and API key.
// The tracker may be nil to disable usage accounting.
func NewGeminiInvoker(ctx context.Context, config Config, usage *UsageTracker) (*GeminiInvoker, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: gemini client: %w", err)
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.Name == "" {
		config.Name = "gemini"
	}
	return &GeminiInvoker{Config: config, client: client, usage: usage}, nil
}

// Invoke implements Invoker. The turn always yields exactly one event whose
// text payload is the schema-constrained answer.
func (g *GeminiInvoker) Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    groupsResponseSchema,
	}

	resp, err := g.client.Models.GenerateContent(callCtx, g.Config.Model, genai.Text(userMessage), cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates from Gemini")
	}

	text, err := candidateText(resp.Candidates[0])
	if err != nil {
		return nil, err
	}

	if g.usage != nil && resp.UsageMetadata != nil {
		g.usage.Record(g.Config.Name, g.Config.Model,
			int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}

	return []Event{TextEvent(text)}, nil
}

// candidateText concatenates the text parts of a candidate. Content can be
// nil on a degenerate candidate even with a stop finish reason.
func candidateText(cand *genai.Candidate) (string, error) {
	if cand.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("unexpected finish reason: %s", cand.FinishReason)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content")
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
