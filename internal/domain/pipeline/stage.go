package pipeline

// Stage is one phase of the document enrichment pipeline. Documents move
// forward through the stages in order; error is reachable from any
// non-terminal stage and is re-enterable into the stage that failed.
type Stage string

const (
	StageCreated        Stage = "created"
	StageCaptured       Stage = "captured"
	StageContextualized Stage = "contextualized"
	StageClarified      Stage = "clarified"
	StageCategorized    Stage = "categorized"
	StageCrystallized   Stage = "crystallized"
	StageConnected      Stage = "connected"
	StageError          Stage = "error"
)

// ForwardStages is the pipeline order, first to last.
var ForwardStages = []Stage{
	StageCreated,
	StageCaptured,
	StageContextualized,
	StageClarified,
	StageCategorized,
	StageCrystallized,
	StageConnected,
}

func (s Stage) Valid() bool {
	if s == StageError {
		return true
	}
	return s.forwardIndex() >= 0
}

// Terminal reports whether the forward pipeline is done. Error is not
// terminal: a retry re-enters the stage that failed.
func (s Stage) Terminal() bool { return s == StageConnected }

func (s Stage) forwardIndex() int {
	for i, st := range ForwardStages {
		if st == s {
			return i
		}
	}
	return -1
}

// NextStage returns the immediate successor in the forward order. The
// second return is false for connected, error, and unknown stages.
func NextStage(s Stage) (Stage, bool) {
	idx := s.forwardIndex()
	if idx < 0 || idx == len(ForwardStages)-1 {
		return "", false
	}
	return ForwardStages[idx+1], true
}

// IsLegalTransition reports whether from -> to is an edge of the stage
// graph: one step forward, any non-terminal stage -> error, or
// error -> any forward stage (retry).
func IsLegalTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StageError {
		return from != StageError && !from.Terminal()
	}
	if from == StageError {
		return to.forwardIndex() >= 0
	}
	next, ok := NextStage(from)
	return ok && next == to
}
