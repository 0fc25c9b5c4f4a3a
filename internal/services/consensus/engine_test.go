package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"oracle/internal/domain/resolution"
)

func votes(exa, perplexity, gpt, grok, gemini int) map[resolution.ProviderName]int {
	return map[resolution.ProviderName]int{
		resolution.ProviderExa:        exa,
		resolution.ProviderPerplexity: perplexity,
		resolution.ProviderGPT:        gpt,
		resolution.ProviderGrok:       grok,
		resolution.ProviderGemini:     gemini,
	}
}

func TestEngine_UnanimousConsensus(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"Yes", "No"}

	result := engine.Decide(options, votes(0, 0, 0, 0, 0))

	assert.Equal(t, resolution.StatusConsensus, result.Status)
	assert.Equal(t, "Yes", result.Final)
	assert.Equal(t, 0, result.ConsensusIndex)
}

func TestEngine_MajorityWithOneAbstainer(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"Yes", "No"}

	// 4 of 5 agree, one found no option: 4 > 5/2.
	result := engine.Decide(options, votes(1, 1, 1, 1, -1))

	assert.Equal(t, resolution.StatusConsensus, result.Status)
	assert.Equal(t, "No", result.Final)
	assert.Equal(t, 1, result.ConsensusIndex)
}

func TestEngine_BareMajority(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"A", "B", "C"}

	// 3 of 5 on the same option clears 2.5.
	result := engine.Decide(options, votes(2, 2, 2, 0, 1))

	assert.Equal(t, resolution.StatusConsensus, result.Status)
	assert.Equal(t, "C", result.Final)
}

func TestEngine_SplitVoteIsNoConsensus(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"A", "B", "C"}

	result := engine.Decide(options, votes(0, 0, 1, 1, 2))

	assert.Equal(t, resolution.StatusNoConsensus, result.Status)
	assert.Equal(t, resolution.NoAnswerSentinel, result.Final)
	// Tie between A and B breaks toward the lower index.
	assert.Equal(t, 0, result.ConsensusIndex)
}

func TestEngine_AbstainersCountAgainstConsensus(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"Yes", "No"}

	// 2 votes for Yes, 3 abstainers: 2 is not a majority of 5.
	result := engine.Decide(options, votes(0, 0, -1, -1, -1))

	assert.Equal(t, resolution.StatusNoConsensus, result.Status)
	assert.Equal(t, resolution.NoAnswerSentinel, result.Final)
	assert.Equal(t, 0, result.ConsensusIndex)
}

func TestEngine_AllAbstainIsNoAnswer(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"Yes", "No"}

	result := engine.Decide(options, votes(-1, -1, -1, -1, -1))

	assert.Equal(t, resolution.StatusNoAnswer, result.Status)
	assert.Equal(t, resolution.NoAnswerSentinel, result.Final)
	assert.Equal(t, resolution.NoMatchIndex, result.ConsensusIndex)
}

func TestEngine_OutOfRangeVoteIsAbstention(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"Yes", "No"}

	result := engine.Decide(options, votes(7, -1, -1, -1, -1))

	assert.Equal(t, resolution.StatusNoAnswer, result.Status)
}

func TestEngine_WeightedMinorityCanWin(t *testing.T) {
	weights := Weights{
		resolution.ProviderExa:        4.0,
		resolution.ProviderPerplexity: 1.0,
		resolution.ProviderGPT:        1.0,
		resolution.ProviderGrok:       1.0,
		resolution.ProviderGemini:     1.0,
	}
	engine := NewEngine(weights)
	options := []string{"Yes", "No"}

	// exa alone holds 4 of 8 total: exactly half, not a strict majority.
	result := engine.Decide(options, votes(0, 1, -1, -1, -1))
	assert.Equal(t, resolution.StatusNoConsensus, result.Status)

	// With one ally it clears the bar.
	result = engine.Decide(options, votes(0, 0, 1, 1, 1))
	assert.Equal(t, resolution.StatusConsensus, result.Status)
	assert.Equal(t, "Yes", result.Final)
}

func TestEngine_DeterministicAcrossVoteOrder(t *testing.T) {
	engine := NewEngine(EqualWeights())
	options := []string{"A", "B"}

	first := engine.Decide(options, votes(0, 1, 0, 1, -1))
	second := engine.Decide(options, votes(0, 1, 0, 1, -1))

	assert.Equal(t, first, second)
}
