// Package guardrails implements the rule-based content-quality evaluator
// gating transcripts and post drafts. Evaluation is pure and deterministic:
// the same text and configuration always produce the same result, with
// violations reported in a fixed rule order.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
)

// Evaluator screens text against the configured rule set.
type Evaluator struct {
	cfg      config.GuardrailsConfig
	spam     []*regexp.Regexp
	wsInner  *regexp.Regexp
	wsBlanks *regexp.Regexp
}

// New compiles the configured spam patterns into an evaluator.
func New(cfg config.GuardrailsConfig) (*Evaluator, error) {
	spam := make([]*regexp.Regexp, 0, len(cfg.SpamPatterns))
	for _, pattern := range cfg.SpamPatterns {
		expr, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile spam pattern %q: %w", pattern, err)
		}
		spam = append(spam, expr)
	}
	return &Evaluator{
		cfg:      cfg,
		spam:     spam,
		wsInner:  regexp.MustCompile(`[ \t]{2,}`),
		wsBlanks: regexp.MustCompile(`\n{3,}`),
	}, nil
}

// CheckTranscript screens transcript text (moderation pass 1).
func (e *Evaluator) CheckTranscript(text string) domain.EvaluationResult {
	result := domain.EvaluationResult{Target: domain.TargetTranscript}

	working, wsViolation, wsFix := e.fixWhitespace(text)
	if !wsFix && wsViolation {
		working = text
	}
	rules := e.cfg.Transcript

	chars := len([]rune(working))
	if chars < rules.MinLength {
		result.Violations = append(result.Violations, e.violation("too_short",
			fmt.Sprintf("transcript too short: %d chars (min: %d)", chars, rules.MinLength)))
	}
	if chars > rules.MaxLength {
		result.Violations = append(result.Violations, e.violation("too_long",
			fmt.Sprintf("transcript too long: %d chars (max: %d)", chars, rules.MaxLength)))
	}

	words := WordCount(working)
	result.WordCount = words
	if words < rules.MinWords {
		result.Violations = append(result.Violations, e.violation("insufficient_words",
			fmt.Sprintf("insufficient word count: %d (min: %d)", words, rules.MinWords)))
	}
	if words > rules.MaxWords {
		result.Violations = append(result.Violations, e.violation("excessive_words",
			fmt.Sprintf("excessive word count: %d (max: %d)", words, rules.MaxWords)))
	}

	if chars >= 50 && RepetitionRatio(working) > rules.MaxRepetitionRatio {
		result.Violations = append(result.Violations,
			e.violation("repetitive_content", "content is too repetitive"))
	}

	if ratio := AlphaRatio(working); ratio < rules.MinAlphaRatio {
		result.Violations = append(result.Violations, e.violation("insufficient_alpha",
			fmt.Sprintf("insufficient letter content (alpha ratio: %.2f)", ratio)))
	}

	if wsViolation {
		result.Violations = append(result.Violations, domain.Violation{
			Rule:      "whitespace",
			Severity:  e.cfg.Severity("whitespace"),
			Message:   "whitespace normalized",
			AutoFixed: wsFix,
		})
		if wsFix {
			result.Fixes = append(result.Fixes, "whitespace")
		}
	}

	result.Text = working
	result.Verdict = e.verdict(result)
	return result
}

// CheckPost screens a post body against platform limits (moderation pass 2).
func (e *Evaluator) CheckPost(body, platform string) domain.EvaluationResult {
	result := domain.EvaluationResult{Target: domain.TargetPost}
	limits := e.cfg.Platform(platform)

	working, wsViolation, wsFix := e.fixWhitespace(body)
	if !wsFix && wsViolation {
		working = body
	}

	deduped, dupViolation := e.dedupeHashtags(working)
	dupFix := dupViolation && e.cfg.AutoFix.DedupeHashtags
	if dupFix {
		working = deduped
	}

	chars := len([]rune(working))
	if chars < limits.MinLength {
		result.Violations = append(result.Violations, e.violation("too_short",
			fmt.Sprintf("post too short: %d chars (min: %d)", chars, limits.MinLength)))
	}

	truncated := false
	if chars > limits.MaxLength {
		v := e.violation("length_exceeded",
			fmt.Sprintf("post too long: %d chars (max: %d)", chars, limits.MaxLength))
		if e.cfg.AutoFix.Truncate {
			working = truncate(working, limits.MaxLength)
			v.AutoFixed = true
			truncated = true
		}
		result.Violations = append(result.Violations, v)
	}

	if ratio, letters := UppercaseRatio(working); letters >= 20 && ratio > e.cfg.MaxUppercaseRatio {
		result.Violations = append(result.Violations, e.violation("excessive_uppercase",
			fmt.Sprintf("uppercase ratio %.2f exceeds %.2f", ratio, e.cfg.MaxUppercaseRatio)))
	}

	if run := LongestRun(working); e.cfg.MaxCharRun > 0 && run > e.cfg.MaxCharRun {
		result.Violations = append(result.Violations, e.violation("character_run",
			fmt.Sprintf("character repeated %d times in a row (max: %d)", run, e.cfg.MaxCharRun)))
	}

	for _, expr := range e.spam {
		if expr.MatchString(working) {
			result.Violations = append(result.Violations,
				e.violation("spam_detected", "spam pattern detected"))
			break
		}
	}

	if count := CountHashtags(working); count > limits.MaxHashtags {
		v := e.violation("excessive_hashtags",
			fmt.Sprintf("too many hashtags: %d (max: %d)", count, limits.MaxHashtags))
		if limits.HardMaxHashtags > 0 && count > limits.HardMaxHashtags {
			v.Severity = e.cfg.BlockingSeverity
			v.Message = fmt.Sprintf("too many hashtags: %d (hard cap: %d)", count, limits.HardMaxHashtags)
		}
		result.Violations = append(result.Violations, v)
	}

	if count := CountEmojis(working); count > limits.MaxEmojis {
		v := e.violation("excessive_emojis",
			fmt.Sprintf("too many emojis: %d (max: %d)", count, limits.MaxEmojis))
		if limits.HardMaxEmojis > 0 && count > limits.HardMaxEmojis {
			v.Severity = e.cfg.BlockingSeverity
			v.Message = fmt.Sprintf("too many emojis: %d (hard cap: %d)", count, limits.HardMaxEmojis)
		}
		result.Violations = append(result.Violations, v)
	}

	if wsViolation {
		result.Violations = append(result.Violations, domain.Violation{
			Rule:      "whitespace",
			Severity:  e.cfg.Severity("whitespace"),
			Message:   "whitespace normalized",
			AutoFixed: wsFix,
		})
	}
	if dupViolation {
		result.Violations = append(result.Violations, domain.Violation{
			Rule:      "duplicate_hashtags",
			Severity:  e.cfg.Severity("duplicate_hashtags"),
			Message:   "duplicate hashtags collapsed",
			AutoFixed: dupFix,
		})
	}

	if wsFix {
		result.Fixes = append(result.Fixes, "whitespace")
	}
	if dupFix {
		result.Fixes = append(result.Fixes, "dedupe_hashtags")
	}
	if truncated {
		result.Fixes = append(result.Fixes, "truncate")
	}

	result.WordCount = WordCount(working)
	result.Text = working
	result.Verdict = e.verdict(result)
	return result
}

func (e *Evaluator) violation(rule, message string) domain.Violation {
	return domain.Violation{Rule: rule, Severity: e.cfg.Severity(rule), Message: message}
}

func (e *Evaluator) verdict(result domain.EvaluationResult) domain.Verdict {
	if result.Blocking(e.cfg.BlockingSeverity) {
		return domain.VerdictFail
	}
	if len(result.Fixes) > 0 {
		return domain.VerdictPassAutoFix
	}
	return domain.VerdictPass
}

// fixWhitespace trims the text, collapses space runs and duplicate blank
// lines. Reports whether the text deviated and whether the fix is enabled.
func (e *Evaluator) fixWhitespace(text string) (fixed string, violated, applied bool) {
	fixed = strings.TrimSpace(text)
	fixed = e.wsInner.ReplaceAllString(fixed, " ")
	fixed = e.wsBlanks.ReplaceAllString(fixed, "\n\n")
	violated = fixed != text
	return fixed, violated, violated && e.cfg.AutoFix.Whitespace
}

// dedupeHashtags removes repeated occurrences of the same tag, keeping the
// first. Comparison is case-insensitive.
func (e *Evaluator) dedupeHashtags(text string) (string, bool) {
	matches := hashtagExpr.FindAllStringIndex(text, -1)
	if len(matches) < 2 {
		return text, false
	}

	seen := make(map[string]struct{}, len(matches))
	var out strings.Builder
	prev := 0
	removed := false
	for _, m := range matches {
		tag := strings.ToLower(text[m[0]:m[1]])
		if _, dup := seen[tag]; dup {
			removed = true
			segment := strings.TrimRight(text[prev:m[0]], " ")
			out.WriteString(segment)
			prev = m[1]
			continue
		}
		seen[tag] = struct{}{}
		out.WriteString(text[prev:m[1]])
		prev = m[1]
	}
	out.WriteString(text[prev:])
	return strings.TrimRight(out.String(), " "), removed
}

// truncate cuts to at most max runes, appending an ellipsis.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimRight(string(runes[:max-3]), " ") + "..."
}
