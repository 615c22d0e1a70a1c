package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// groupsResponse mirrors the structured output contract so the response JSON
// schema can be reflected from it. Decoding the payload is the caller's job.
type groupsResponse struct {
	Groups []studentGroup `json:"groups" jsonschema_description:"All attendee groups, covering every attendee"`
}

type studentGroup struct {
	Group       []string `json:"group" jsonschema_description:"Names of the attendees in this group, at most three"`
	Description string   `json:"description" jsonschema_description:"Why these attendees should connect"`
}

// OpenAIInvoker answers the matchmaking turn with a single chat completion
// constrained to the groups JSON schema.
type OpenAIInvoker struct {
	Config Config
	client *openai.Client
	schema any
	usage  *UsageTracker
}

// NewOpenAIInvoker creates an invoker for the given model and API key.
// The tracker may be nil to disable usage accounting.
func NewOpenAIInvoker(config Config, usage *UsageTracker) *OpenAIInvoker {
	client := openai.NewClient(option.WithAPIKey(config.APIKey))

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(groupsResponse{})

	if config.Model == "" {
		config.Model = openai.ChatModelGPT4o
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	return &OpenAIInvoker{
		Config: config,
		client: &client,
		schema: schema,
		usage:  usage,
	}
}

// Invoke implements Invoker. The turn always yields exactly one event whose
// text payload is the schema-constrained completion.
func (o *OpenAIInvoker) Invoke(ctx context.Context, instruction, userMessage string) ([]Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "groups_response",
		Description: openai.String("Attendee groups with a rationale per group"),
		Schema:      o.schema,
		Strict:      openai.Bool(true),
	}

	completion, err := o.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(userMessage),
		},
		Model: o.Config.Model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	if o.usage != nil {
		o.usage.Record(o.Config.Name, o.Config.Model,
			int(completion.Usage.PromptTokens), int(completion.Usage.CompletionTokens))
	}

	return []Event{TextEvent(completion.Choices[0].Message.Content)}, nil
}
