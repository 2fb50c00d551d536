package extraction

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

// fragmentStore collects fragment definitions discovered during a run.
// Concurrent inserts race benignly: fragment content is expected to be
// stable, so insert-if-absent keeps the first writer.
type fragmentStore struct {
	mu        sync.Mutex
	fragments map[string]*operation.Fragment
}

func newFragmentStore() *fragmentStore {
	return &fragmentStore{fragments: make(map[string]*operation.Fragment)}
}

func (s *fragmentStore) add(f *operation.Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fragments[f.Name]; !exists {
		s.fragments[f.Name] = f
	}
}

func (s *fragmentStore) get(name string) (*operation.Fragment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fragments[name]
	return f, ok
}

func (s *fragmentStore) all() []*operation.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*operation.Fragment, 0, len(s.fragments))
	for _, f := range s.fragments {
		out = append(out, f)
	}
	return out
}

// loadFragmentsDir scans a configured directory for fragment definitions in
// .graphql/.gql files and in template literals of host-language files.
func loadFragmentsDir(dir string, store *fragmentStore) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".graphql", ".gql":
			data, err := os.ReadFile(path)
			if err != nil {
				return nil // unreadable fragment files are not fatal
			}
			collectFragments(path, string(data), store)
		case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			for _, res := range pluckFile(path, string(data), nil, operation.NamingPreserve) {
				for _, f := range res.fragments {
					store.add(f)
				}
			}
		}
		return nil
	})
}

func collectFragments(file, text string, store *fragmentStore) {
	doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: text})
	if err != nil {
		return
	}
	for _, frag := range doc.Fragments {
		store.add(&operation.Fragment{
			Name:   frag.Name,
			OnType: frag.TypeCondition,
			Source: fragmentText(text, frag),
			File:   file,
		})
	}
}

// resolveFragments inlines resolved fragment text into each operation's
// parseable source and parsed document, transitively, so the transformer and
// scorer see the full selection surface. Unresolved names stay referenced.
func resolveFragments(ops []*operation.Operation, store *fragmentStore, inline bool) {
	for _, op := range ops {
		local := make(map[string]bool)
		if op.Document != nil {
			for _, f := range op.Document.Fragments {
				local[f.Name] = true
			}
		}
		queue := append([]string(nil), op.Fragments...)
		for len(queue) > 0 {
			name := queue[0]
			queue = queue[1:]
			if local[name] {
				continue
			}
			frag, ok := store.get(name)
			if !ok {
				continue
			}
			local[name] = true
			if !inline {
				continue
			}
			doc, err := parser.ParseQuery(&ast.Source{Name: frag.File, Input: frag.Source})
			if err != nil || len(doc.Fragments) == 0 {
				continue
			}
			op.NormalizedSource = op.NormalizedSource + "\n" + frag.Source
			op.Document.Fragments = append(op.Document.Fragments, doc.Fragments[0])
			for _, nested := range spreadNames(doc.Fragments[0].SelectionSet) {
				queue = append(queue, nested)
			}
		}
	}
}
