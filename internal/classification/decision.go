package classification

import "github.com/Veraticus/dispute-assistant/internal/model"

// Decision is the outcome of one classification stage: either a result or a
// deferral to the next stage.
type Decision struct {
	result  model.ClassificationResult
	decided bool
}

// Decide wraps a classification result.
func Decide(result model.ClassificationResult) Decision {
	return Decision{result: result, decided: true}
}

// Defer signals that the stage could not decide.
func Defer() Decision {
	return Decision{}
}

// Result returns the classification and whether one was decided.
func (d Decision) Result() (model.ClassificationResult, bool) {
	return d.result, d.decided
}

// Decided reports whether the stage produced a result.
func (d Decision) Decided() bool {
	return d.decided
}
