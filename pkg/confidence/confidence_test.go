package confidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/transformer"
)

func scoredOp(t *testing.T, src string) *operation.Operation {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Name: "src/user.ts", Input: src})
	if err != nil {
		t.Fatalf("failed to parse query: %v", err)
	}
	op := &operation.Operation{ID: "op", File: "src/user.ts", NormalizedSource: src, Document: doc}
	if len(doc.Operations) > 0 {
		for _, v := range doc.Operations[0].VariableDefinitions {
			op.Variables = append(op.Variables, v.Variable)
		}
	}
	return op
}

func renameResult(rules ...transformer.Rule) *transformer.Result {
	pattern := "simple-field-rename"
	if len(rules) > 1 {
		pattern = "multi-change"
	}
	return &transformer.Result{Pattern: pattern, Rules: rules, Changed: true}
}

func TestScoreTransformation(t *testing.T) {
	rename := transformer.Rule{Type: transformer.RuleFieldRename, From: "fullName", To: "name"}

	t.Run("should categorize a simple rename as automatic", func(t *testing.T) {
		op := scoredOp(t, `query GetUser { user { id fullName email } }`)
		score := NewScorer().ScoreTransformation(op, renameResult(rename))

		assert.Equal(t, 92, score.Score)
		assert.Equal(t, CategoryAutomatic, score.Category)
		assert.False(t, score.RequiresReview)
		assert.Equal(t, 100, score.Factors.Complexity)
		assert.Equal(t, 95, score.Factors.PatternMatch)
		assert.Equal(t, 80, score.Factors.TestCoverage)
		assert.Equal(t, 85, score.Factors.HistoricalSuccess)
	})

	t.Run("should penalize depth beyond five levels", func(t *testing.T) {
		op := scoredOp(t, `query Deep { a { b { c { d { e { f { g } } } } } } }`)
		score := NewScorer().ScoreTransformation(op, renameResult(rename))
		assert.Equal(t, 80, score.Factors.Complexity)
		assert.Contains(t, strings.Join(score.Risks, ";"), "nesting")
	})

	t.Run("should penalize variables and extra rules", func(t *testing.T) {
		op := scoredOp(t, `query Q($a: ID!, $b: ID!) { user(id: $a) { id } }`)
		second := transformer.Rule{Type: transformer.RuleFieldRename, From: "x", To: "y"}
		score := NewScorer().ScoreTransformation(op, renameResult(rename, second))
		// two variables and one extra rule
		assert.Equal(t, 100-2*10-15, score.Factors.Complexity)
		assert.Contains(t, strings.Join(score.Risks, ";"), "variables")
	})

	t.Run("should never raise the score when complexity grows", func(t *testing.T) {
		simple := NewScorer().ScoreTransformation(scoredOp(t, `query Q { user { id } }`), renameResult(rename))
		withVars := NewScorer().ScoreTransformation(scoredOp(t, `query Q($a: ID!) { user(id: $a) { id } }`), renameResult(rename))
		assert.LessOrEqual(t, withVars.Score, simple.Score)
	})

	t.Run("should floor the complexity factor at zero", func(t *testing.T) {
		op := scoredOp(t, `query Q { user { id } }`)
		op.Variables = make([]string, 20)
		score := NewScorer().ScoreTransformation(op, renameResult(rename))
		assert.Equal(t, 0, score.Factors.Complexity)
	})

	t.Run("should score unknown patterns conservatively", func(t *testing.T) {
		op := scoredOp(t, `query Q { user { id } }`)
		res := &transformer.Result{Pattern: "something-new", Rules: []transformer.Rule{rename}, Changed: true}
		score := NewScorer().ScoreTransformation(op, res)
		assert.Equal(t, 40, score.Factors.PatternMatch)
		assert.Contains(t, strings.Join(score.Risks, ";"), "non-standard")
	})

	t.Run("should use measured coverage and historical data when present", func(t *testing.T) {
		op := scoredOp(t, `query Q { user { id } }`)
		s := &Scorer{
			CoverageByFile:   map[string]int{"src/user.ts": 30},
			SuccessByPattern: map[string]int{"simple-field-rename": 99},
		}
		score := s.ScoreTransformation(op, renameResult(rename))
		assert.Equal(t, 30, score.Factors.TestCoverage)
		assert.Equal(t, 99, score.Factors.HistoricalSuccess)
		assert.Contains(t, strings.Join(score.Risks, ";"), "coverage")
	})
}

func TestCategorization(t *testing.T) {
	coverageOnly := Weights{TestCoverage: 1}

	scoreAt := func(t *testing.T, coverage int) Score {
		t.Helper()
		op := scoredOp(t, `query Q { user { id } }`)
		s := &Scorer{Weights: coverageOnly, CoverageByFile: map[string]int{"src/user.ts": coverage}}
		return s.ScoreTransformation(op, renameResult(transformer.Rule{Type: transformer.RuleFieldRename, From: "a", To: "b"}))
	}

	t.Run("should mark 90 and above automatic", func(t *testing.T) {
		score := scoreAt(t, 90)
		require.Equal(t, 90, score.Score)
		assert.Equal(t, CategoryAutomatic, score.Category)
		assert.False(t, score.RequiresReview)
	})

	t.Run("should mark 89 semi-automatic and flag review", func(t *testing.T) {
		score := scoreAt(t, 89)
		require.Equal(t, 89, score.Score)
		assert.Equal(t, CategorySemiAutomatic, score.Category)
		assert.True(t, score.RequiresReview)
	})

	t.Run("should mark 70 semi-automatic", func(t *testing.T) {
		score := scoreAt(t, 70)
		assert.Equal(t, CategorySemiAutomatic, score.Category)
	})

	t.Run("should mark 69 manual", func(t *testing.T) {
		score := scoreAt(t, 69)
		assert.Equal(t, CategoryManual, score.Category)
	})
}
