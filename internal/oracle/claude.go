package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/pkg/anthropic"
)

const claudeSystemPrompt = `You decide textual entailment between two short fragments of a customer interaction.
The TEXT entails the HYPOTHESIS if a typical reader of the TEXT would infer that the HYPOTHESIS is true.
Answer with a single JSON object and nothing else:
{"label": "ENTAILMENT" or "NONENTAILMENT", "confidence": number between 0 and 1}`

// Claude asks an Anthropic model for the decision.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude returns a Claude-backed oracle.
func NewClaude(client anthropic.Client, model string, maxTokens int64) *Claude {
	if maxTokens <= 0 {
		maxTokens = 64
	}
	return &Claude{client: client, model: model, maxTokens: maxTokens}
}

func (c *Claude) Name() string { return "claude" }

// Fingerprint covers the model and the prompt, so editing either starts a
// fresh set of cached decisions.
func (c *Claude) Fingerprint() string {
	sum := sha256.Sum256([]byte(claudeSystemPrompt))
	return fmt.Sprintf("claude|model=%s|max_tokens=%d|prompt=%s", c.model, c.maxTokens, hex.EncodeToString(sum[:8]))
}

func (c *Claude) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    claudeSystemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("TEXT: %s\nHYPOTHESIS: %s", text, hypothesis),
		}},
		Temperature: &temp,
	})
	if err != nil {
		return model.Decision{}, err
	}
	resp.Usage.LogCost(c.model)
	return parseClaudeDecision(resp.Text)
}

type claudeVerdict struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// parseClaudeDecision extracts the JSON verdict from a model reply.
func parseClaudeDecision(reply string) (model.Decision, error) {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return model.Decision{}, eris.Errorf("oracle: no JSON object in reply %q", reply)
	}
	var v claudeVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return model.Decision{}, eris.Wrap(err, "oracle: decode verdict")
	}
	if v.Confidence == nil {
		return model.Decision{}, eris.New("oracle: verdict without confidence")
	}
	d := model.Decision{Label: model.ParseLabel(v.Label), Confidence: *v.Confidence}
	if err := d.Validate(); err != nil {
		return model.Decision{}, eris.Wrap(err, "oracle: invalid verdict")
	}
	return d, nil
}
