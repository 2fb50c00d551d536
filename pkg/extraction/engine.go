// Package extraction walks a source tree and turns embedded GraphQL into
// normalized operation records, fragments, and enumerated variants.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/sync/errgroup"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
)

type Strategy string

const (
	StrategyPluck  Strategy = "pluck"
	StrategyAST    Strategy = "ast"
	StrategyHybrid Strategy = "hybrid"
)

const DefaultConcurrency = 4

type Config struct {
	RootDir          string
	Include          []string
	Ignore           []string
	Strategy         Strategy
	DetectVariants   bool
	ResolveFragments bool
	InlineFragments  bool
	FragmentsDir     string
	Naming           operation.NamingConvention
	Concurrency      int
	UseCache         bool
}

func DefaultConfig(rootDir string) Config {
	return Config{
		RootDir:          rootDir,
		Include:          []string{"*.js", "*.jsx", "*.ts", "*.tsx", "*.mjs", "*.cjs", "*.graphql", "*.gql"},
		Ignore:           []string{"node_modules", ".git", "dist", "build", "coverage"},
		Strategy:         StrategyHybrid,
		DetectVariants:   true,
		ResolveFragments: true,
		InlineFragments:  true,
		Naming:           operation.NamingPreserve,
		Concurrency:      DefaultConcurrency,
		UseCache:         true,
	}
}

// Engine extracts GraphQL operations from a source tree. Safe for reuse
// across runs; the per-file cache persists on the engine.
type Engine struct {
	cfg      Config
	registry *querypattern.Registry
	cache    *fileCache
	log      abstractlogger.Logger
}

func NewEngine(cfg Config, registry *querypattern.Registry, logger abstractlogger.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyHybrid
	}
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	if registry == nil {
		registry = querypattern.DefaultRegistry()
	}
	return &Engine{cfg: cfg, registry: registry, cache: newFileCache(), log: logger}
}

// Extract runs the configured strategy over the tree. Per-file failures are
// recorded and extraction continues; only catastrophic I/O (missing root)
// fails the run. Source mappings for operations with a captured host AST are
// registered into maps when it is non-nil.
func (e *Engine) Extract(ctx context.Context, maps *sourcemap.Registry) (*operation.ExtractionResult, error) {
	started := time.Now()
	files, err := e.listFiles()
	if err != nil {
		return nil, err
	}

	result := &operation.ExtractionResult{RunID: uuid.NewString()}
	result.Stats.ByType = make(map[operation.Type]int)
	result.Stats.ByFile = make(map[string]int)

	store := newFragmentStore()
	if e.cfg.ResolveFragments && e.cfg.FragmentsDir != "" {
		if err := loadFragmentsDir(e.cfg.FragmentsDir, store); err != nil {
			result.Errors = append(result.Errors, operation.ExtractionError{
				File:    e.cfg.FragmentsDir,
				Message: fmt.Sprintf("fragments directory: %v", err),
			})
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			ops, frags, mappings, cached, ferr := e.extractFile(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			result.Stats.FilesScanned++
			if cached {
				result.Stats.FilesFromCache++
			}
			if ferr != nil {
				result.Stats.FilesFailed++
				result.Errors = append(result.Errors, *ferr)
			}
			result.Queries = append(result.Queries, ops...)
			for _, f := range frags {
				store.add(f)
			}
			if maps != nil {
				for _, m := range mappings {
					if err := maps.Register(m); err != nil {
						e.log.Debug("sourcemap registration rejected", abstractlogger.Error(err))
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.cfg.ResolveFragments {
		resolveFragments(result.Queries, store, e.cfg.InlineFragments)
	}
	result.Fragments = store.all()

	if e.cfg.DetectVariants {
		var allSwitches []*operation.Switch
		for _, op := range result.Queries {
			variants, switches := enumerateVariants(op)
			result.Variants = append(result.Variants, variants...)
			allSwitches = append(allSwitches, switches...)
		}
		result.Switches = unifySwitches(allSwitches)
	}

	e.fillStats(result, started)
	e.log.Info("extraction complete",
		abstractlogger.String("root", e.cfg.RootDir),
		abstractlogger.Any("queries", result.Stats.TotalQueries),
		abstractlogger.Any("variants", result.Stats.TotalVariants),
		abstractlogger.Any("errors", len(result.Errors)),
	)
	return result, nil
}

// extractFile dispatches one file to the configured scanners.
func (e *Engine) extractFile(ctx context.Context, file string) ([]*operation.Operation, []*operation.Fragment, []*sourcemap.Mapping, bool, *operation.ExtractionError) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, nil, false, &operation.ExtractionError{File: file, Message: err.Error()}
	}
	text := string(data)

	switch strings.ToLower(filepath.Ext(file)) {
	case ".graphql", ".gql":
		return e.extractGraphQLFile(file, text)
	}

	lang := languageFor(file)
	useAST := e.cfg.Strategy != StrategyPluck && lang != nil

	if useAST {
		var results []astResult
		var cached bool
		if e.cfg.UseCache {
			results, cached = e.cache.get(file, text)
		}
		if !cached {
			var astErr error
			results, astErr = astScanFile(ctx, file, text, lang, e.registry, e.cfg.Naming)
			if astErr != nil {
				if e.cfg.Strategy == StrategyHybrid {
					ops, frags := e.pluckInto(file, text)
					return ops, frags, nil, false, &operation.ExtractionError{
						File: file, Message: fmt.Sprintf("ast scan failed, used pluck: %v", astErr),
					}
				}
				return nil, nil, nil, false, &operation.ExtractionError{File: file, Message: astErr.Error()}
			}
			if e.cfg.UseCache {
				e.cache.put(file, text, results)
			}
		}
		var ops []*operation.Operation
		var frags []*operation.Fragment
		var mappings []*sourcemap.Mapping
		for _, r := range results {
			ops = append(ops, r.ops...)
			frags = append(frags, r.fragments...)
			for _, op := range r.ops {
				mappings = append(mappings, &sourcemap.Mapping{
					OperationID:    op.ID,
					File:           file,
					Start:          r.start,
					End:            r.end,
					Node:           r.node,
					Interpolations: op.Interpolations,
				})
			}
		}
		return ops, frags, mappings, cached, nil
	}

	if e.cfg.Strategy == StrategyAST {
		// Not host-language code and AST-only was requested.
		return nil, nil, nil, false, nil
	}
	ops, frags := e.pluckInto(file, text)
	return ops, frags, nil, false, nil
}

func (e *Engine) pluckInto(file, text string) ([]*operation.Operation, []*operation.Fragment) {
	var ops []*operation.Operation
	var frags []*operation.Fragment
	for _, r := range pluckFile(file, text, e.registry, e.cfg.Naming) {
		ops = append(ops, r.ops...)
		frags = append(frags, r.fragments...)
	}
	return ops, frags
}

func (e *Engine) extractGraphQLFile(file, text string) ([]*operation.Operation, []*operation.Fragment, []*sourcemap.Mapping, bool, *operation.ExtractionError) {
	raws := scanInterpolations(text)
	normalized, records := normalizeTemplate(text, raws)
	ops, frags, err := buildOperations(file, 1, 1, text, normalized, records, raws, e.registry, e.cfg.Naming)
	if err != nil {
		return nil, nil, nil, false, &operation.ExtractionError{File: file, Message: err.Error()}
	}
	return ops, frags, nil, false, nil
}

func (e *Engine) listFiles() ([]string, error) {
	info, err := os.Stat(e.cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("extraction root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("extraction root %s is not a directory", e.cfg.RootDir)
	}
	var files []string
	err = filepath.WalkDir(e.cfg.RootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if e.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.included(d.Name()) && !e.ignored(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (e *Engine) included(base string) bool {
	if len(e.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range e.cfg.Include {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (e *Engine) ignored(base string) bool {
	for _, pattern := range e.cfg.Ignore {
		if pattern == base {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (e *Engine) fillStats(result *operation.ExtractionResult, started time.Time) {
	stats := &result.Stats
	stats.TotalQueries = len(result.Queries)
	stats.TotalVariants = len(result.Variants)
	stats.TotalFragments = len(result.Fragments)
	pathSet := make(map[string]bool)
	for _, op := range result.Queries {
		stats.ByType[op.Type]++
		stats.ByFile[op.File]++
		if def := op.Definition(); def != nil {
			collectFieldPaths(def.SelectionSet, "", pathSet)
		}
	}
	for p := range pathSet {
		stats.FieldPaths = append(stats.FieldPaths, p)
	}
	sort.Strings(stats.FieldPaths)
	stats.DurationMs = time.Since(started).Milliseconds()
}

// collectFieldPaths inventories dotted field paths across all operations,
// the same inventory the original audit tooling produced from source.
func collectFieldPaths(set ast.SelectionSet, prefix string, into map[string]bool) {
	for _, sel := range set {
		field, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		if strings.HasPrefix(field.Name, "GqlmPlaceholder") {
			continue
		}
		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}
		into[path] = true
		collectFieldPaths(field.SelectionSet, path, into)
	}
}
