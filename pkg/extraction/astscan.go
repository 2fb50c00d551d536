package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
)

// languageFor picks the tree-sitter grammar for a source file. nil means the
// file is not host-language code and only the pluck scanner applies.
func languageFor(file string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts", ".mts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	}
	return nil
}

type astResult struct {
	pluckResult
	node sourcemap.NodeKind
}

// astScanFile parses the host language and finds GraphQL-bearing template
// literals: tagged templates whose tag is gql/graphql/GraphQL (including
// member-expression forms) and calls of the same names whose first argument
// is a template literal. Byte ranges and interpolation structure come from
// the syntax tree, not from text matching.
func astScanFile(ctx context.Context, file, text string, lang *sitter.Language, registry *querypattern.Registry, naming operation.NamingConvention) ([]astResult, error) {
	p := sitter.NewParser()
	p.SetLanguage(lang)
	src := []byte(text)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var results []astResult
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			if tmpl, node, ok := graphqlTemplate(n, src); ok {
				if r, err := buildFromTemplate(file, src, tmpl, registry, naming); err == nil {
					results = append(results, astResult{pluckResult: *r, node: node})
				}
				// Template substitutions may nest further call
				// expressions; those belong to the template, not to us.
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	if len(results) == 0 && tree.RootNode().HasError() {
		return nil, fmt.Errorf("host language parse produced errors")
	}
	return results, nil
}

// graphqlTemplate matches both tagged-template and call forms and returns
// the template_string node.
func graphqlTemplate(call *sitter.Node, src []byte) (*sitter.Node, sourcemap.NodeKind, bool) {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return nil, "", false
	}
	if !isGraphQLTag(fn, src) {
		return nil, "", false
	}
	switch args.Type() {
	case "template_string":
		return args, sourcemap.NodeTaggedTemplate, true
	case "arguments":
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if c := args.NamedChild(i); c.Type() == "template_string" {
				return c, sourcemap.NodeCallExpression, true
			}
		}
	}
	return nil, "", false
}

func isGraphQLTag(fn *sitter.Node, src []byte) bool {
	var name string
	switch fn.Type() {
	case "identifier":
		name = fn.Content(src)
	case "member_expression":
		if prop := fn.ChildByFieldName("property"); prop != nil {
			name = prop.Content(src)
		}
	default:
		return false
	}
	switch name {
	case "gql", "graphql", "GraphQL":
		return true
	}
	return false
}

func buildFromTemplate(file string, src []byte, tmpl *sitter.Node, registry *querypattern.Registry, naming operation.NamingConvention) (*pluckResult, error) {
	contentStart := int(tmpl.StartByte()) + 1
	contentEnd := int(tmpl.EndByte()) - 1
	if contentEnd < contentStart {
		return nil, fmt.Errorf("empty template")
	}
	content := string(src[contentStart:contentEnd])

	var raws []rawInterpolation
	for i := 0; i < int(tmpl.NamedChildCount()); i++ {
		sub := tmpl.NamedChild(i)
		if sub.Type() != "template_substitution" {
			continue
		}
		expr := sub.NamedChild(0)
		if expr == nil {
			continue
		}
		ri := rawInterpolation{
			start: int(sub.StartByte()) - contentStart,
			end:   int(sub.EndByte()) - contentStart,
			expr:  expr.Content(src),
		}
		classifyNode(expr, src, &ri)
		raws = append(raws, ri)
	}

	normalized, records := normalizeTemplate(content, raws)
	line := int(tmpl.StartPoint().Row) + 1
	column := int(tmpl.StartPoint().Column) + 2 // past the backtick
	ops, frags, err := buildOperations(file, line, column, content, normalized, records, raws, registry, naming)
	if err != nil {
		return nil, err
	}
	return &pluckResult{
		ops:       ops,
		fragments: frags,
		raws:      raws,
		start:     contentStart,
		end:       contentEnd,
		tagged:    true,
	}, nil
}

// classifyNode assigns an interpolation kind from the syntax node. Ternaries
// over string-literal branches become resolvable conditionals; everything
// else falls back to textual classification.
func classifyNode(expr *sitter.Node, src []byte, ri *rawInterpolation) {
	switch expr.Type() {
	case "ternary_expression":
		cond := expr.ChildByFieldName("condition")
		cons := expr.ChildByFieldName("consequence")
		alt := expr.ChildByFieldName("alternative")
		if cond != nil && isStringLiteral(cons) && isStringLiteral(alt) {
			ri.kind = operation.InterpolationConditional
			ri.condition = cond.Content(src)
			ri.branches = [2]string{stringContent(cons, src), stringContent(alt, src)}
			return
		}
		ri.kind = operation.InterpolationOther
	case "member_expression":
		if strings.HasPrefix(expr.Content(src), "queryNames.") {
			ri.kind = operation.InterpolationQueryNameRef
		} else {
			ri.kind = operation.InterpolationMemberAccess
		}
	case "identifier":
		ri.kind = operation.InterpolationIdentifier
	case "call_expression":
		ri.kind = operation.InterpolationFunctionCall
	default:
		kind, cond := classifyExpression(expr.Content(src))
		ri.kind = kind
		if cond != nil {
			ri.condition = cond.condition
			ri.branches = cond.branches
		}
	}
}

func isStringLiteral(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "string", "template_string":
		return true
	}
	return false
}

func stringContent(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return ""
}
