package domain

// Verdict is the aggregate outcome of a guardrails evaluation.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictPassAutoFix Verdict = "pass_with_autofix"
	VerdictFail        Verdict = "fail"
)

// EvaluationTarget tells which kind of text was screened.
type EvaluationTarget string

const (
	TargetTranscript EvaluationTarget = "transcript"
	TargetPost       EvaluationTarget = "post"
)

// Violation is a single rule failure found during evaluation.
type Violation struct {
	Rule      string
	Severity  int
	Message   string
	AutoFixed bool
}

// EvaluationResult is the complete outcome of screening one text. Violations
// are listed in the fixed rule order so results diff cleanly across runs.
// Text carries the content after auto-fixes were applied.
type EvaluationResult struct {
	Target     EvaluationTarget
	Verdict    Verdict
	Violations []Violation
	Fixes      []string
	Text       string
	WordCount  int
}

// Blocking reports whether any violation at or above the cutoff severity
// remained unfixed.
func (r EvaluationResult) Blocking(cutoff int) bool {
	for _, v := range r.Violations {
		if v.Severity >= cutoff && !v.AutoFixed {
			return true
		}
	}
	return false
}

// Reason joins violation messages into a single audit string.
func (r EvaluationResult) Reason() string {
	if len(r.Violations) == 0 {
		return "content is valid"
	}
	out := ""
	for i, v := range r.Violations {
		if i > 0 {
			out += "; "
		}
		out += v.Message
	}
	return out
}
