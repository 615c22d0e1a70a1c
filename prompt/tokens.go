package prompt

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens counts the tokens the instruction text will consume for the
// given model, falling back to the cl100k_base encoding when the model is
// unknown to the tokenizer.
func EstimateTokens(text, model string) (int, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, fmt.Errorf("prompt: get encoding: %w", err)
		}
	}
	return len(encoding.Encode(text, nil, nil)), nil
}
