package guardrails

import (
	"reflect"
	"strings"
	"testing"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
)

func testConfig() config.GuardrailsConfig {
	return config.GuardrailsConfig{
		Transcript: config.TranscriptRules{
			MinLength:          50,
			MaxLength:          50000,
			MinWords:           5,
			MaxWords:           10000,
			MaxRepetitionRatio: 0.5,
			MinAlphaRatio:      0.5,
		},
		Platforms: map[string]config.PlatformLimits{
			"threads": {
				MinLength:       20,
				MaxLength:       500,
				MaxHashtags:     5,
				HardMaxHashtags: 10,
				MaxEmojis:       10,
				HardMaxEmojis:   20,
			},
		},
		SpamPatterns:      []string{`!{3,}`},
		MaxUppercaseRatio: 0.5,
		MaxCharRun:        10,
		BlockingSeverity:  8,
		WarningSeverity:   5,
		SeverityWeights: map[string]int{
			"too_short":           8,
			"too_long":            8,
			"insufficient_words":  8,
			"excessive_words":     8,
			"repetitive_content":  8,
			"insufficient_alpha":  8,
			"length_exceeded":     8,
			"spam_detected":       9,
			"excessive_uppercase": 8,
			"character_run":       8,
			"excessive_hashtags":  5,
			"excessive_emojis":    5,
			"whitespace":          1,
			"duplicate_hashtags":  2,
		},
		AutoFix: config.AutoFixConfig{
			Truncate:       true,
			Whitespace:     true,
			DedupeHashtags: true,
		},
	}
}

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	eval, err := New(testConfig())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return eval
}

func TestCheckTranscriptTooShortFails(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	result := eval.CheckTranscript("short")

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail", result.Verdict)
	}
	found := false
	for _, v := range result.Violations {
		if v.Rule == "too_short" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected too_short violation, got %+v", result.Violations)
	}
}

func TestCheckTranscriptCleanPasses(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	text := "This video explains how goroutines and channels cooperate to build concurrent pipelines in Go programs."
	result := eval.CheckTranscript(text)

	if result.Verdict != domain.VerdictPass {
		t.Fatalf("verdict = %v, want pass (violations: %+v)", result.Verdict, result.Violations)
	}
	if result.Text != text {
		t.Errorf("clean text must pass through unchanged")
	}
}

func TestCheckTranscriptRepetitiveContentFails(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	result := eval.CheckTranscript(strings.Repeat("buy now ", 30))

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail", result.Verdict)
	}
}

func TestCheckPostTruncationAutoFix(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	body := strings.Repeat("useful words about the video ", 22)
	if len([]rune(body)) < 600 {
		t.Fatalf("test body too short to exercise truncation")
	}

	result := eval.CheckPost(body, "threads")

	if result.Verdict != domain.VerdictPassAutoFix {
		t.Fatalf("verdict = %v, want pass_with_autofix (violations: %+v)", result.Verdict, result.Violations)
	}
	if got := len([]rune(result.Text)); got > 500 {
		t.Errorf("fixed body is %d runes, want <= 500", got)
	}
	if !strings.HasSuffix(result.Text, "...") {
		t.Errorf("truncated body must end with ellipsis")
	}
}

func TestCheckPostSpamFails(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	result := eval.CheckPost("Watch this amazing video right now!!!", "threads")

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail", result.Verdict)
	}
}

func TestCheckPostHardCapEscalatesToBlocking(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	body := "A solid write-up on channel patterns " +
		"#a #b #c #d #e #f #g #h #i #j #k #l"
	result := eval.CheckPost(body, "threads")

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail past the hard hashtag cap", result.Verdict)
	}
}

func TestHardCapBlocksRegardlessOfSpamWeight(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SeverityWeights["spam_detected"] = 5
	eval, err := New(cfg)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	body := "A solid write-up on channel patterns " +
		"#a #b #c #d #e #f #g #h #i #j #k #l"
	result := eval.CheckPost(body, "threads")

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail past the hard hashtag cap (violations: %+v)",
			result.Verdict, result.Violations)
	}
}

func TestCheckPostWarningCountDoesNotBlock(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	body := "A solid write-up on channel patterns in Go #a #b #c #d #e #f #g"
	result := eval.CheckPost(body, "threads")

	if result.Verdict == domain.VerdictFail {
		t.Fatalf("seven hashtags is a warning, not a blocker (violations: %+v)", result.Violations)
	}
}

func TestEvaluationDeterministic(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	body := "Loud   spacing #go #go and a tail " + strings.Repeat("x", 520)
	first := eval.CheckPost(body, "threads")
	second := eval.CheckPost(body, "threads")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("evaluation not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAutoFixIdempotent(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	body := "Great   take on worker pools #go #Go " + strings.Repeat("more detail here ", 35)
	first := eval.CheckPost(body, "threads")
	if first.Verdict != domain.VerdictPassAutoFix {
		t.Fatalf("first pass verdict = %v, want pass_with_autofix", first.Verdict)
	}

	second := eval.CheckPost(first.Text, "threads")
	if second.Text != first.Text {
		t.Errorf("re-running on fixed text changed it:\nwas: %q\nnow: %q", first.Text, second.Text)
	}
	if len(second.Fixes) != 0 {
		t.Errorf("fixed text must need no further fixes, got %v", second.Fixes)
	}
}

func TestWhitespaceFixDisabledKeepsOriginal(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.AutoFix.Whitespace = false
	eval, err := New(cfg)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	body := "A thoughtful   doubled-space post about select loops in Go"
	result := eval.CheckPost(body, "threads")

	if result.Text != body {
		t.Errorf("disabled fix must not rewrite text")
	}
	found := false
	for _, v := range result.Violations {
		if v.Rule == "whitespace" && !v.AutoFixed {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unfixed whitespace violation, got %+v", result.Violations)
	}
}

func TestCheckPostCharacterRun(t *testing.T) {
	t.Parallel()
	eval := newTestEvaluator(t)

	result := eval.CheckPost("This is soooooooooooo good, a quality breakdown of contexts", "threads")

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail on character run", result.Verdict)
	}
}

func TestDefaultConfigRejectsRepetitiveTranscript(t *testing.T) {
	t.Parallel()

	eval, err := New(config.Load().Guardrails)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	result := eval.CheckTranscript(strings.Repeat("buy now ", 40))

	if result.Verdict != domain.VerdictFail {
		t.Fatalf("verdict = %v, want fail under shipped defaults (violations: %+v)",
			result.Verdict, result.Violations)
	}
	blocked := false
	for _, v := range result.Violations {
		if v.Rule == "repetitive_content" && v.Severity >= config.Load().Guardrails.BlockingSeverity {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("repetitive_content must carry a blocking weight by default, got %+v", result.Violations)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.SpamPatterns = []string{`(.)\1{10,}`}

	if _, err := New(cfg); err == nil {
		t.Fatal("backreference pattern must be rejected")
	}
}
