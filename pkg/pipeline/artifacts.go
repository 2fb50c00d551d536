package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/sjson"
)

// ExtractionArtifact renders the extraction result JSON consumed by the
// dashboard and report tooling.
func (r *Result) ExtractionArtifact(directory string) ([]byte, error) {
	ext := r.Extraction
	base, err := json.Marshal(map[string]interface{}{
		"queries":   ext.Queries,
		"fragments": ext.Fragments,
		"variants":  ext.Variants,
		"errors":    ext.Errors,
		"stats":     ext.Stats,
	})
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(base, "timestamp", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "directory", directory); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "totalQueries", ext.Stats.TotalQueries)
}

// TransformationArtifact renders the transformation result JSON.
func (r *Result) TransformationArtifact() ([]byte, error) {
	var transformations []*Outcome
	for _, o := range r.Outcomes {
		if o.Transform != nil {
			transformations = append(transformations, o)
		}
	}
	base, err := json.Marshal(map[string]interface{}{
		"transformations": transformations,
	})
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(base, "timestamp", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "totalTransformed", r.TotalTransformed); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "summary", r.Summary())
}

// Summary assembles a markdown body suitable for a pull-request
// description: totals, per-file changes, confidence distribution, and the
// manual-review queue.
func (r *Result) Summary() string {
	var b strings.Builder
	b.WriteString("## GraphQL migration\n\n")
	fmt.Fprintf(&b, "- operations found: %d\n", r.Extraction.Stats.TotalQueries)
	fmt.Fprintf(&b, "- variants enumerated: %d\n", r.Extraction.Stats.TotalVariants)
	fmt.Fprintf(&b, "- operations rewritten: %d\n", r.TotalTransformed)
	fmt.Fprintf(&b, "- skipped: %d\n", r.Skipped)
	if r.DryRun {
		b.WriteString("- mode: dry run, no files written\n")
	}

	if len(r.FileChanges) > 0 {
		b.WriteString("\n### Changed files\n\n")
		for _, fc := range r.FileChanges {
			fmt.Fprintf(&b, "- `%s`: %d operation(s), +%d/-%d lines\n",
				fc.File, fc.Operations, fc.LinesAdded, fc.LinesRemoved)
		}
	}

	counts := map[string]int{}
	for _, o := range r.Outcomes {
		if o.Score != nil {
			counts[string(o.Score.Category)]++
		}
	}
	if len(counts) > 0 {
		b.WriteString("\n### Confidence\n\n")
		for _, cat := range []string{"automatic", "semi-automatic", "manual"} {
			if n := counts[cat]; n > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", cat, n)
			}
		}
	}

	var review []string
	for _, o := range r.Outcomes {
		if o.Score != nil && o.Score.RequiresReview && o.Transform != nil {
			review = append(review, fmt.Sprintf("- `%s` (score %d)", o.Operation.ID, o.Score.Score))
		}
	}
	if len(review) > 0 {
		b.WriteString("\n### Needs review\n\n")
		b.WriteString(strings.Join(review, "\n"))
		b.WriteString("\n")
	}

	if len(r.ManualRules) > 0 {
		b.WriteString("\n### Deprecations without a mechanical rewrite\n\n")
		for _, mr := range r.ManualRules {
			fmt.Fprintf(&b, "- `%s.%s`: %s\n", mr.ParentType, mr.Field, mr.DeprecationReason)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n### Errors (%d)\n\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}
