package consensus

import (
	"oracle/internal/adapters/config"
	"oracle/internal/domain/resolution"
)

// Weights holds the fixed per-provider vote weights.
type Weights map[resolution.ProviderName]float64

// WeightsFromConfig builds the weight table from configuration.
func WeightsFromConfig(cfg config.ConsensusConfig) Weights {
	return Weights{
		resolution.ProviderExa:        cfg.ExaWeight,
		resolution.ProviderPerplexity: cfg.PerplexityWeight,
		resolution.ProviderGPT:        cfg.GPTWeight,
		resolution.ProviderGrok:       cfg.GrokWeight,
		resolution.ProviderGemini:     cfg.GeminiWeight,
	}
}

// EqualWeights gives every provider weight 1.0.
func EqualWeights() Weights {
	w := make(Weights, len(resolution.Providers()))
	for _, p := range resolution.Providers() {
		w[p] = 1.0
	}
	return w
}

// Engine computes weighted consensus over the five provider votes. It is a
// pure function of its inputs: no clock, no identity, no side effects.
type Engine struct {
	weights Weights
	// total is the weight of the full provider set. The threshold is a
	// strict majority of this total, counting abstainers against consensus.
	total float64
}

// NewEngine creates an engine with the given weight table.
func NewEngine(weights Weights) *Engine {
	total := 0.0
	for _, p := range resolution.Providers() {
		total += weights[p]
	}
	return &Engine{weights: weights, total: total}
}

// Decide tallies the weighted votes and derives the consensus outcome.
//
// An index of -1 records no vote for any option. The winner must strictly
// exceed half the total configured weight to reach consensus; otherwise the
// plurality winner is surfaced as an advisory best guess. Ties break toward
// the lowest option index, which keeps the outcome deterministic regardless
// of provider completion order.
func (e *Engine) Decide(options []string, votes map[resolution.ProviderName]int) resolution.ConsensusResult {
	tally := make([]float64, len(options))
	voted := false

	for _, provider := range resolution.Providers() {
		idx, ok := votes[provider]
		if !ok || idx < 0 || idx >= len(options) {
			continue
		}
		tally[idx] += e.weights[provider]
		voted = true
	}

	if !voted {
		return resolution.NoAnswer(votes)
	}

	// Lowest index wins ties because the scan never replaces on equality.
	winner := 0
	for i := 1; i < len(tally); i++ {
		if tally[i] > tally[winner] {
			winner = i
		}
	}

	if tally[winner] > e.total/2 {
		return resolution.Consensus(options, winner, votes)
	}

	return resolution.NoConsensus(winner, votes)
}
