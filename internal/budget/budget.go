// Package budget provides token budget estimation for the answer prompt.
// Because the assistant supports multiple LLM backends with different
// tokenizers, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). Estimates are used for logging and
// for warning when retrieved context grows past what small local models
// accept; nothing is trimmed.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Sized for 8k-context models such as Mistral 7B while leaving room for
	// the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Exceeds reports the estimated size of msgs and whether it is above
// maxTokens. A non-positive maxTokens uses DefaultMaxContextTokens.
func Exceeds(msgs []*schema.Message, maxTokens int) (tokens int, over bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	tokens = EstimateMessages(msgs)
	return tokens, tokens > maxTokens
}
