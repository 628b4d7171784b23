// Package intent parses tagged directives out of reasoning-service text and
// commits them as graph mutations. Extraction is order-independent regex
// scanning over the full response: text outside tags is discarded, and a tag
// appearing anywhere — even inside a quoted example — will be extracted.
// That ambiguity is accepted; malformed tags are counted, never applied.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/volition/pkg/types"
)

// Directive kinds produced by the parser.
const (
	KindGoal       = "goal"
	KindAction     = "action"
	KindStrategy   = "strategy"
	KindReflection = "reflection"
	KindBlocked    = "blocked"
	KindDone       = "done"
	KindRemember   = "remember"
)

// Directive is one parsed, validated tag ready to be applied to the store.
type Directive struct {
	Kind     string
	Content  string
	Priority int        // actions: 1-5
	Weight   float64    // strategies
	Deadline *time.Time // goals, optional
	Reason   string     // blocked, optional
}

// ParseResult carries the extracted directives plus the count of tags that
// looked like directives but failed validation. Malformed tags are surfaced
// as a count rather than silently dropped.
type ParseResult struct {
	Directives []Directive
	Malformed  int
}

var (
	goalTagRe       = regexp.MustCompile(`(?i)\[GOAL:\s*([^|\]]+?)\s*(?:\|\s*DEADLINE:\s*([^\]]*?)\s*)?\]`)
	actionTagRe     = regexp.MustCompile(`(?i)\[ACTION:\s*([^|\]]+?)\s*\|\s*PRIORITY:\s*([^\]|]*?)\s*\]`)
	actionBareRe    = regexp.MustCompile(`(?i)\[ACTION:\s*([^|\]]+?)\s*\]`)
	strategyTagRe   = regexp.MustCompile(`(?i)\[STRATEGY:\s*([^|\]]+?)\s*(?:\|\s*WEIGHT:\s*([^\]|]*?)\s*)?\]`)
	reflectionTagRe = regexp.MustCompile(`(?i)\[REFLECTION:\s*([^\]]+?)\s*\]`)
	blockedTagRe    = regexp.MustCompile(`(?i)\[BLOCKED:\s*([^|\]]+?)\s*(?:\|\s*REASON:\s*([^\]]*?)\s*)?\]`)
	doneTagRe       = regexp.MustCompile(`(?i)\[DONE:\s*([^\]]+?)\s*\]`)
	rememberTagRe   = regexp.MustCompile(`(?i)\[REMEMBER:\s*([^\]]+?)\s*\]`)
)

// deadlineLayouts are the date formats accepted in DEADLINE fields.
var deadlineLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Parse scans text for every directive tag. Scanning is order-independent;
// the same response parsed twice yields the same directives.
func Parse(text string) ParseResult {
	var result ParseResult

	for _, m := range goalTagRe.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[1])
		if content == "" {
			result.Malformed++
			continue
		}
		d := Directive{Kind: KindGoal, Content: content}
		if raw := strings.TrimSpace(m[2]); raw != "" {
			if t, ok := parseDeadline(raw); ok {
				d.Deadline = &t
			}
			// An unparseable deadline drops the deadline, not the goal.
		}
		result.Directives = append(result.Directives, d)
	}

	for _, m := range actionTagRe.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[1])
		priority, err := strconv.Atoi(strings.TrimSpace(m[2]))
		if content == "" || err != nil || !types.IsValidPriority(priority) {
			result.Malformed++
			continue
		}
		result.Directives = append(result.Directives, Directive{
			Kind:     KindAction,
			Content:  content,
			Priority: priority,
		})
	}

	// Bare [ACTION: …] tags without a PRIORITY field are malformed per the
	// grammar and never persisted.
	for _, m := range actionBareRe.FindAllStringSubmatch(text, -1) {
		if !strings.Contains(m[0], "|") {
			result.Malformed++
		}
	}

	for _, m := range strategyTagRe.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[1])
		if content == "" {
			result.Malformed++
			continue
		}
		weight := 0.5
		if raw := strings.TrimSpace(m[2]); raw != "" {
			w, err := strconv.ParseFloat(raw, 64)
			if err != nil || w < 0 || w > 1 {
				result.Malformed++
				continue
			}
			weight = w
		}
		result.Directives = append(result.Directives, Directive{
			Kind:    KindStrategy,
			Content: content,
			Weight:  weight,
		})
	}

	for _, m := range reflectionTagRe.FindAllStringSubmatch(text, -1) {
		result.Directives = append(result.Directives, Directive{
			Kind:    KindReflection,
			Content: strings.TrimSpace(m[1]),
		})
	}

	for _, m := range blockedTagRe.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[1])
		if content == "" {
			result.Malformed++
			continue
		}
		result.Directives = append(result.Directives, Directive{
			Kind:    KindBlocked,
			Content: content,
			Reason:  strings.TrimSpace(m[2]),
		})
	}

	for _, m := range doneTagRe.FindAllStringSubmatch(text, -1) {
		result.Directives = append(result.Directives, Directive{
			Kind:    KindDone,
			Content: strings.TrimSpace(m[1]),
		})
	}

	for _, m := range rememberTagRe.FindAllStringSubmatch(text, -1) {
		result.Directives = append(result.Directives, Directive{
			Kind:    KindRemember,
			Content: strings.TrimSpace(m[1]),
		})
	}

	return result
}

// parseDeadline tries the accepted layouts in order.
func parseDeadline(raw string) (time.Time, bool) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TagLegend is the fixed grammar legend embedded into every prompt so the
// reasoning service knows which directives the pipeline understands.
const TagLegend = `Respond using these directive tags where you want changes applied:
[GOAL: <text> | DEADLINE: <yyyy-mm-dd>]  create a goal (deadline optional)
[ACTION: <text> | PRIORITY: <1-5>]       create an action (priority required)
[STRATEGY: <text> | WEIGHT: <0.0-1.0>]   record a strategy (weight optional)
[REFLECTION: <text>]                     record a reflection
[BLOCKED: <text match> | REASON: <text>] mark a matching action blocked
[DONE: <text match>]                     mark a matching action completed
[REMEMBER: <text>]                       store a fact
Text outside tags is ignored.`
