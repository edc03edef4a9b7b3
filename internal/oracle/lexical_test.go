package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "bill is high", normalize("  ＢILL  is\tHigh "))
	assert.Equal(t, []string{"bill", "high"}, contentTokens("The bill is HIGH!"))
}

func TestAlignment_Directional(t *testing.T) {
	o := NewAlignment(0.9)
	ctx := context.Background()

	d, err := o.Decide(ctx, "the phone bill is too high this month", "phone bill too high")
	require.NoError(t, err)
	assert.Equal(t, model.LabelEntailment, d.Label)
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)

	d, err = o.Decide(ctx, "phone bill too high", "the phone bill is too high this month")
	require.NoError(t, err)
	assert.Equal(t, model.LabelNonEntailment, d.Label)
	// 4 of 5 hypothesis content words aligned.
	assert.InDelta(t, 1-4.0/5.0, d.Confidence, 1e-9)
}

func TestAlignment_EmptyHypothesis(t *testing.T) {
	d, err := NewAlignment(0.5).Decide(context.Background(), "anything", "the , .")
	require.NoError(t, err)
	assert.Equal(t, model.LabelUnknown, d.Label)
}

func TestAlignment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAlignment(0.5).Decide(ctx, "a", "b")
	assert.Error(t, err)
}

func TestEditDistance_DeletionsAreFree(t *testing.T) {
	o := NewEditDistance(0.7)
	ctx := context.Background()

	d, err := o.Decide(ctx, "the very old car is red", "the car is red")
	require.NoError(t, err)
	assert.Equal(t, model.LabelEntailment, d.Label)
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)

	d, err = o.Decide(ctx, "the car is red", "the very old car is red")
	require.NoError(t, err)
	assert.Equal(t, model.LabelNonEntailment, d.Label)
	assert.InDelta(t, 9.0/23.0, d.Confidence, 1e-9)
}

func TestEditDistance_CaseInsensitive(t *testing.T) {
	d, err := NewEditDistance(0.9).Decide(context.Background(), "My Bill", "my bill")
	require.NoError(t, err)
	assert.Equal(t, model.LabelEntailment, d.Label)
}

func TestVerdict_Clamps(t *testing.T) {
	assert.Equal(t, model.Decision{Label: model.LabelEntailment, Confidence: 1}, verdict(1.4, 0.5))
	assert.Equal(t, model.Decision{Label: model.LabelNonEntailment, Confidence: 1}, verdict(-0.2, 0.5))
}
