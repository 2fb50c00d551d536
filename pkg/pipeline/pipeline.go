// Package pipeline composes extraction, validation, transformation,
// application, and rollout into one run. The CLI and dashboard are thin
// shells over this package.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/sync/errgroup"

	"github.com/jensneuse/graphql-migrate/pkg/applicator"
	"github.com/jensneuse/graphql-migrate/pkg/confidence"
	"github.com/jensneuse/graphql-migrate/pkg/deprecation"
	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/health"
	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
	"github.com/jensneuse/graphql-migrate/pkg/rollout"
	"github.com/jensneuse/graphql-migrate/pkg/schemaloader"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
	"github.com/jensneuse/graphql-migrate/pkg/transformer"
)

type Config struct {
	RootDir      string
	SchemaSource string
	// RulesPath optionally points at the deprecation-rules JSON document;
	// schema @deprecated directives are always consulted.
	RulesPath string

	Strategy          extraction.Strategy
	DetectVariants    bool
	ResolveFragments  bool
	FragmentsDir      string
	Naming            operation.NamingConvention
	UseCache          bool
	Concurrency       int
	MinConfidence     int
	DryRun            bool
	RolloutPercentage int
}

func DefaultConfig(rootDir, schemaSource string) Config {
	return Config{
		RootDir:          rootDir,
		SchemaSource:     schemaSource,
		Strategy:         extraction.StrategyHybrid,
		DetectVariants:   true,
		ResolveFragments: true,
		Naming:           operation.NamingPreserve,
		UseCache:         true,
		Concurrency:      extraction.DefaultConcurrency,
		MinConfidence:    70,
	}
}

// Outcome is one operation's passage through the pipeline.
type Outcome struct {
	Operation      *operation.Operation         `json:"operation"`
	Recommendation *querypattern.Recommendation `json:"recommendation,omitempty"`
	Transform      *transformer.Result          `json:"transform,omitempty"`
	Score          *confidence.Score            `json:"score,omitempty"`
	Applied        bool                         `json:"applied"`
	SkipReason     string                       `json:"skipReason,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// FileChange summarizes edits written to one file.
type FileChange struct {
	File         string `json:"file"`
	Operations   int    `json:"operations"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
}

// Result is one pipeline run's full report.
type Result struct {
	Extraction       *operation.ExtractionResult `json:"extraction"`
	Outcomes         []*Outcome                  `json:"outcomes"`
	FileChanges      []FileChange                `json:"fileChanges"`
	ManualRules      []deprecation.Rule          `json:"manualRules,omitempty"`
	Errors           []string                    `json:"errors,omitempty"`
	TotalTransformed int                         `json:"totalTransformed"`
	Skipped          int                         `json:"skipped"`
	DryRun           bool                        `json:"dryRun"`
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// Pipeline wires the collaborators. All of them are caller-constructed;
// nothing here reaches for global state.
type Pipeline struct {
	cfg      Config
	loader   *schemaloader.Loader
	registry *querypattern.Registry
	scorer   *confidence.Scorer
	manager  *rollout.Manager
	tracker  *health.Tracker
	log      abstractlogger.Logger
}

func New(cfg Config, loader *schemaloader.Loader, manager *rollout.Manager, tracker *health.Tracker, logger abstractlogger.Logger) *Pipeline {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Pipeline{
		cfg:      cfg,
		loader:   loader,
		registry: querypattern.DefaultRegistry(),
		scorer:   confidence.NewScorer(),
		manager:  manager,
		tracker:  tracker,
		log:      logger,
	}
}

// Registry swaps the pattern registry, for callers with their own table.
func (p *Pipeline) Registry(r *querypattern.Registry) { p.registry = r }

// Run executes extract → validate → transform → apply → rollout. Phases are
// strictly sequential; per-item failures accumulate, configuration failures
// (schema load, missing root) abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	schemaRes, err := p.loader.Load(p.cfg.SchemaSource)
	if err != nil {
		return nil, err
	}

	rules, manual := p.collectRules(schemaRes)

	maps := sourcemap.NewRegistry()
	engineCfg := extraction.DefaultConfig(p.cfg.RootDir)
	engineCfg.Strategy = p.cfg.Strategy
	engineCfg.DetectVariants = p.cfg.DetectVariants
	engineCfg.ResolveFragments = p.cfg.ResolveFragments
	engineCfg.InlineFragments = p.cfg.ResolveFragments
	engineCfg.FragmentsDir = p.cfg.FragmentsDir
	engineCfg.Naming = p.cfg.Naming
	engineCfg.Concurrency = p.cfg.Concurrency
	engineCfg.UseCache = p.cfg.UseCache
	engine := extraction.NewEngine(engineCfg, p.registry, p.log)

	extracted, err := engine.Extract(ctx, maps)
	if err != nil {
		return nil, err
	}

	result := &Result{Extraction: extracted, ManualRules: manual, DryRun: p.cfg.DryRun}
	for _, e := range extracted.Errors {
		result.Errors = append(result.Errors, e.Error())
	}

	trans := transformer.NewWithSchema(schemaRes.Schema)
	outcomes := p.transformAll(extracted.Queries, trans, rules)
	result.Outcomes = outcomes

	p.applyAll(ctx, result, maps)

	for _, o := range result.Outcomes {
		if o.Applied {
			result.TotalTransformed++
			p.manager.CreateFeatureFlag(o.Operation.ID)
			if p.cfg.RolloutPercentage > 0 {
				if err := p.manager.StartRollout(o.Operation.ID, p.cfg.RolloutPercentage); err != nil {
					result.Errors = append(result.Errors, err.Error())
				}
			}
		} else if o.SkipReason != "" {
			result.Skipped++
		}
	}
	return result, nil
}

func (p *Pipeline) collectRules(schemaRes *schemaloader.Result) ([]transformer.Rule, []deprecation.Rule) {
	all := deprecation.FromSchema(schemaRes.Schema)
	if p.cfg.RulesPath != "" {
		data, err := os.ReadFile(p.cfg.RulesPath)
		if err != nil {
			p.log.Error("deprecation rules unreadable", abstractlogger.Error(err))
		} else if parsed, err := deprecation.ParseRules(data); err != nil {
			p.log.Error("deprecation rules invalid", abstractlogger.Error(err))
		} else {
			all = append(all, parsed...)
		}
	}
	return deprecation.ToTransformationRules(all)
}

// transformAll runs the transform and score phases per operation.
func (p *Pipeline) transformAll(ops []*operation.Operation, trans *transformer.Transformer, rules []transformer.Rule) []*Outcome {
	sorted := append([]*operation.Operation(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Line < sorted[j].Line
	})

	var outcomes []*Outcome
	for _, op := range sorted {
		o := &Outcome{Operation: op}
		outcomes = append(outcomes, o)

		rec := p.registry.Recommend(op)
		o.Recommendation = &rec

		applicable := deprecation.ApplicableRules(rules, fieldNames(op))
		if len(applicable) == 0 && !rec.ShouldMigrate {
			o.SkipReason = "no applicable rules"
			continue
		}

		res, err := trans.Transform(op, applicable)
		if err != nil {
			o.Error = err.Error()
			continue
		}
		if rec.ShouldMigrate && rec.Fragment != nil {
			if transformer.RenameFragment(res.Document, rec.Fragment.From, rec.Fragment.To) {
				res.Transformed = transformer.Format(res.Document)
				res.Changed = res.Original != res.Transformed
			}
		}
		nameMigration := rec.ShouldMigrate && op.Name.IsDynamic()
		if !res.Changed && !nameMigration {
			o.SkipReason = "rules produced no textual change"
			continue
		}
		o.Transform = res

		score := p.scorer.ScoreTransformation(op, res)
		o.Score = &score
		if score.Score < p.cfg.MinConfidence {
			o.SkipReason = fmt.Sprintf("confidence %d below threshold %d", score.Score, p.cfg.MinConfidence)
		}
	}
	return outcomes
}

// applyAll splices accepted transformations back into their files. Distinct
// files are processed concurrently; edits within one file are ordered by
// descending offset inside the applicator.
func (p *Pipeline) applyAll(ctx context.Context, result *Result, maps *sourcemap.Registry) {
	byFile := make(map[string][]*Outcome)
	for _, o := range result.Outcomes {
		if o.Transform == nil || o.SkipReason != "" || o.Error != "" {
			continue
		}
		byFile[o.Operation.File] = append(byFile[o.Operation.File], o)
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	limit := p.cfg.Concurrency
	if limit <= 0 {
		limit = extraction.DefaultConcurrency
	}
	g.SetLimit(limit)

	for file, fileOutcomes := range byFile {
		file, fileOutcomes := file, fileOutcomes
		g.Go(func() error {
			change, errs := p.applyFile(file, fileOutcomes, maps)
			mu.Lock()
			defer mu.Unlock()
			result.Errors = append(result.Errors, errs...)
			if change != nil {
				result.FileChanges = append(result.FileChanges, *change)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.FileChanges, func(i, j int) bool {
		return result.FileChanges[i].File < result.FileChanges[j].File
	})
}

func (p *Pipeline) applyFile(file string, outcomes []*Outcome, maps *sourcemap.Registry) (*FileChange, []string) {
	var errs []string
	data, err := os.ReadFile(file)
	if err != nil {
		for _, o := range outcomes {
			o.Error = err.Error()
		}
		return nil, []string{fmt.Sprintf("%s: %v", file, err)}
	}

	var edits []applicator.Edit
	var editOutcomes []*Outcome
	for _, o := range outcomes {
		mapping, ok := maps.Consume(o.Operation.ID)
		if !ok {
			o.Error = fmt.Sprintf("%v: %s", applicator.ErrMissingSourceAST, o.Operation.ID)
			errs = append(errs, o.Error)
			continue
		}
		edit := applicator.Edit{Mapping: mapping, NewGraphQL: o.Transform.Transformed}
		if o.Recommendation != nil && o.Recommendation.ShouldMigrate && o.Operation.Name.IsDynamic() {
			if idx, ok := nameInterpolationIndex(o.Operation); ok {
				edit.ExpressionOverrides = map[int]string{idx: o.Recommendation.Target.Template}
			}
		}
		edits = append(edits, edit)
		editOutcomes = append(editOutcomes, o)
	}
	if len(edits) == 0 {
		return nil, errs
	}

	applied, err := applicator.ApplyFile(file, string(data), edits)
	if err != nil {
		for _, o := range editOutcomes {
			o.Error = err.Error()
		}
		return nil, append(errs, fmt.Sprintf("%s: %v", file, err))
	}

	if !p.cfg.DryRun {
		if err := os.WriteFile(file, []byte(applied.Code), 0o644); err != nil {
			return nil, append(errs, fmt.Sprintf("%s: %v", file, err))
		}
	}
	for _, o := range editOutcomes {
		o.Applied = true
	}
	return &FileChange{
		File:         file,
		Operations:   applied.Applied,
		LinesAdded:   applied.LinesAdded,
		LinesRemoved: applied.LinesRemoved,
	}, errs
}

func nameInterpolationIndex(op *operation.Operation) (int, bool) {
	for _, in := range op.Interpolations {
		if "${"+in.Expression+"}" == op.Name.Pattern.Template {
			return in.Index, true
		}
	}
	return 0, false
}

func fieldNames(op *operation.Operation) map[string]bool {
	names := make(map[string]bool)
	if op.Document == nil {
		return names
	}
	for _, def := range op.Document.Operations {
		collectFields(def.SelectionSet, names)
	}
	for _, frag := range op.Document.Fragments {
		collectFields(frag.SelectionSet, names)
	}
	return names
}

func collectFields(set ast.SelectionSet, into map[string]bool) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			into[s.Name] = true
			collectFields(s.SelectionSet, into)
		case *ast.InlineFragment:
			collectFields(s.SelectionSet, into)
		}
	}
}
