package resolution

// Status summarizes the agreement level across providers for one attempt.
type Status string

const (
	// StatusConsensus means the weighted winner cleared the threshold.
	StatusConsensus Status = "consensus"

	// StatusNoConsensus means at least one provider voted but no option
	// cleared the threshold.
	StatusNoConsensus Status = "no_consensus"

	// StatusNoAnswer means no provider identified any option.
	StatusNoAnswer Status = "no_answer"
)

// NoAnswerSentinel is the final answer whenever status is not consensus.
const NoAnswerSentinel = "No Answer"

// NoMatchIndex marks a provider whose answer matched no option.
const NoMatchIndex = -1

// ConsensusResult is the aggregate outcome of one attempt.
//
// Invariants: Final is an options[] literal iff Status is StatusConsensus.
// ConsensusIndex is -1 when Status is StatusNoAnswer; for StatusNoConsensus
// it carries the plurality winner as an advisory best guess. The asymmetry
// (best guess for no_consensus, -1 for no_answer) is deliberate: the former
// is advisory UX, the latter a strict signal.
type ConsensusResult struct {
	// Votes holds the normalized index per provider, -1 for no match.
	Votes map[ProviderName]int

	Status         Status
	Final          string
	ConsensusIndex int
}

// Consensus builds a result for an unambiguous weighted winner.
func Consensus(options []string, index int, votes map[ProviderName]int) ConsensusResult {
	return ConsensusResult{
		Votes:          votes,
		Status:         StatusConsensus,
		Final:          options[index],
		ConsensusIndex: index,
	}
}

// NoConsensus builds a result carrying the plurality winner as advisory metadata.
func NoConsensus(bestGuess int, votes map[ProviderName]int) ConsensusResult {
	return ConsensusResult{
		Votes:          votes,
		Status:         StatusNoConsensus,
		Final:          NoAnswerSentinel,
		ConsensusIndex: bestGuess,
	}
}

// NoAnswer builds a result for the case where every provider abstained.
func NoAnswer(votes map[ProviderName]int) ConsensusResult {
	return ConsensusResult{
		Votes:          votes,
		Status:         StatusNoAnswer,
		Final:          NoAnswerSentinel,
		ConsensusIndex: NoMatchIndex,
	}
}
