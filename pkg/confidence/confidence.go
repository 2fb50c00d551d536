// Package confidence scores how safe an automated rewrite is to apply
// without review. The weights and penalty constants are calibration
// parameters reproduced exactly for compatibility with historical scoring;
// Weights allows overriding them where a caller has better data.
package confidence

import (
	"math"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/transformer"
)

type Category string

const (
	CategoryAutomatic     Category = "automatic"
	CategorySemiAutomatic Category = "semi-automatic"
	CategoryManual        Category = "manual"
)

// Factors are the four sub-scores, each in [0,100].
type Factors struct {
	Complexity        int `json:"complexity"`
	PatternMatch      int `json:"patternMatch"`
	TestCoverage      int `json:"testCoverage"`
	HistoricalSuccess int `json:"historicalSuccess"`
}

// Score is derived and recomputable; it is never a source of truth.
type Score struct {
	Score          int      `json:"score"`
	Category       Category `json:"category"`
	Factors        Factors  `json:"factors"`
	Risks          []string `json:"risks"`
	RequiresReview bool     `json:"requiresReview"`
}

// Weights are the factor weights; the zero value selects the calibrated
// defaults 0.3/0.3/0.2/0.2.
type Weights struct {
	Complexity        float64
	PatternMatch      float64
	TestCoverage      float64
	HistoricalSuccess float64
}

func defaultWeights() Weights {
	return Weights{Complexity: 0.3, PatternMatch: 0.3, TestCoverage: 0.2, HistoricalSuccess: 0.2}
}

const (
	depthPenaltyStart    = 5
	depthPenalty         = 10
	fieldPenaltyStart    = 20
	fieldPenalty         = 2
	fragmentPenalty      = 8
	variablePenalty      = 10
	multiRulePenalty     = 15
	defaultTestCoverage  = 80
	defaultHistorical    = 85
	lowCoverageThreshold = 50
)

// Scorer computes confidence scores. CoverageByFile and SuccessByPattern
// supply measured data when available; absent entries fall back to the
// calibrated defaults.
type Scorer struct {
	Weights          Weights
	CoverageByFile   map[string]int
	SuccessByPattern map[string]int
}

func NewScorer() *Scorer { return &Scorer{} }

// ScoreTransformation scores one transformation attempt.
func (s *Scorer) ScoreTransformation(op *operation.Operation, res *transformer.Result) Score {
	w := s.Weights
	if w.Complexity == 0 && w.PatternMatch == 0 && w.TestCoverage == 0 && w.HistoricalSuccess == 0 {
		w = defaultWeights()
	}

	m := measure(op)
	factors := Factors{
		Complexity:        complexityScore(m, len(res.Rules)),
		PatternMatch:      patternScore(res.Pattern),
		TestCoverage:      s.coverage(op),
		HistoricalSuccess: s.historical(res.Pattern),
	}

	weighted := w.Complexity*float64(factors.Complexity) +
		w.PatternMatch*float64(factors.PatternMatch) +
		w.TestCoverage*float64(factors.TestCoverage) +
		w.HistoricalSuccess*float64(factors.HistoricalSuccess)
	total := int(math.Round(weighted))
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	score := Score{
		Score:          total,
		Category:       categorize(total),
		Factors:        factors,
		RequiresReview: total < 90,
	}
	score.Risks = risks(m, factors)
	return score
}

func categorize(score int) Category {
	switch {
	case score >= 90:
		return CategoryAutomatic
	case score >= 70:
		return CategorySemiAutomatic
	default:
		return CategoryManual
	}
}

type metrics struct {
	depth     int
	fields    int
	fragments int
	variables int
}

func measure(op *operation.Operation) metrics {
	m := metrics{
		fragments: len(op.Fragments),
		variables: len(op.Variables),
	}
	if def := op.Definition(); def != nil {
		m.depth = depth(def.SelectionSet)
		m.fields = countFields(def.SelectionSet)
	}
	return m
}

func depth(set ast.SelectionSet) int {
	max := 0
	for _, sel := range set {
		child := 0
		switch s := sel.(type) {
		case *ast.Field:
			child = depth(s.SelectionSet)
		case *ast.InlineFragment:
			child = depth(s.SelectionSet)
		}
		if child > max {
			max = child
		}
	}
	if len(set) == 0 {
		return 0
	}
	return max + 1
}

func countFields(set ast.SelectionSet) int {
	n := 0
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			n += 1 + countFields(s.SelectionSet)
		case *ast.InlineFragment:
			n += countFields(s.SelectionSet)
		}
	}
	return n
}

// complexityScore starts at 100 and only ever subtracts, so growing any
// metric can never raise the sub-score. Multi-rule application dampens the
// result once more rather than crediting per rule.
func complexityScore(m metrics, ruleCount int) int {
	c := 100
	if m.depth > depthPenaltyStart {
		c -= (m.depth - depthPenaltyStart) * depthPenalty
	}
	if m.fields > fieldPenaltyStart {
		c -= (m.fields - fieldPenaltyStart) * fieldPenalty
	}
	c -= m.fragments * fragmentPenalty
	c -= m.variables * variablePenalty
	if ruleCount > 1 {
		c -= multiRulePenalty * (ruleCount - 1)
	}
	if c < 0 {
		c = 0
	}
	return c
}

func patternScore(pattern string) int {
	switch pattern {
	case "no-op":
		return 100
	case "field-rename", "simple-field-rename", "root-query-migration",
		"connection-to-array", "deprecated-field-removal":
		return 95
	case "multi-change", "type-change":
		return 80
	case "custom", "complex":
		return 35
	default:
		return 40
	}
}

func (s *Scorer) coverage(op *operation.Operation) int {
	if v, ok := s.CoverageByFile[op.File]; ok {
		return clamp(v)
	}
	return defaultTestCoverage
}

func (s *Scorer) historical(pattern string) int {
	if v, ok := s.SuccessByPattern[pattern]; ok {
		return clamp(v)
	}
	return defaultHistorical
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// risks accumulates advisory findings; they never block application.
func risks(m metrics, f Factors) []string {
	var out []string
	if m.depth > depthPenaltyStart {
		out = append(out, "complex nesting beyond 5 levels")
	}
	if m.variables > 0 {
		out = append(out, "operation uses variables")
	}
	if f.TestCoverage < lowCoverageThreshold {
		out = append(out, "low test coverage")
	}
	if f.PatternMatch <= 40 {
		out = append(out, "non-standard transformation pattern")
	}
	if m.fragments > 5 {
		out = append(out, "more than 5 fragment references")
	}
	return out
}
