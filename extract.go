package taproot

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseImports parses Python source with tree-sitter and returns every
// import statement found anywhere in the file, including imports nested in
// functions, classes, and conditional blocks. Source with syntax errors
// fails with ErrParseFailed; no partial results are returned.
//
// Each call uses its own parser, so ParseImports is safe for concurrent use.
func ParseImports(ctx context.Context, source []byte) ([]ImportRef, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrParseFailed
	}

	var refs []ImportRef
	collectImports(root, source, &refs)
	return refs, nil
}

// collectImports walks the syntax tree and appends an ImportRef per imported
// module. Import statements are leaves of the walk: nothing inside one is an
// import statement itself.
func collectImports(node *sitter.Node, source []byte, refs *[]ImportRef) {
	switch node.Type() {
	case "import_statement":
		*refs = append(*refs, plainImports(node, source)...)
		return
	case "import_from_statement":
		*refs = append(*refs, fromImport(node, source))
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectImports(node.NamedChild(i), source, refs)
	}
}

// nodeText returns the source text a node spans.
func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// dottedSegments splits a dotted_name node into its identifier segments.
func dottedSegments(node *sitter.Node, source []byte) []string {
	return strings.Split(nodeText(node, source), ".")
}

// plainImports handles "import a.b, c as d": one ImportRef per listed
// module. Aliases are irrelevant here; the dependency is the real module.
func plainImports(node *sitter.Node, source []byte) []ImportRef {
	var refs []ImportRef
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			refs = append(refs, ImportRef{Module: dottedSegments(child, source)})
		case "aliased_import":
			// aliased_import = dotted_name "as" identifier
			for j := 0; j < int(child.ChildCount()); j++ {
				if inner := child.Child(j); inner.Type() == "dotted_name" {
					refs = append(refs, ImportRef{Module: dottedSegments(inner, source)})
					break
				}
			}
		}
	}
	return refs
}

// fromImport handles "from [dots][module] import names". The grammar puts
// the module before the "import" keyword and the bound names after it, so
// the walk tracks which side of the keyword it is on.
func fromImport(node *sitter.Node, source []byte) ImportRef {
	var ref ImportRef
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true

		case "relative_import":
			// relative_import = import_prefix [dotted_name]; the prefix
			// text is the dots themselves.
			ref.Relative = true
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				switch inner.Type() {
				case "import_prefix":
					ref.Level = len(nodeText(inner, source))
				case "dotted_name":
					ref.Module = dottedSegments(inner, source)
				}
			}

		case "dotted_name":
			if sawImport {
				ref.Names = append(ref.Names, nodeText(child, source))
			} else {
				ref.Module = dottedSegments(child, source)
			}

		case "aliased_import":
			// Only the real name matters; "from m import a as b" depends
			// on m.a regardless of the alias.
			for j := 0; j < int(child.ChildCount()); j++ {
				if inner := child.Child(j); inner.Type() == "dotted_name" || inner.Type() == "identifier" {
					ref.Names = append(ref.Names, nodeText(inner, source))
					break
				}
			}

		case "identifier":
			if sawImport {
				ref.Names = append(ref.Names, nodeText(child, source))
			}

		case "wildcard_import":
			// "from m import *" binds no nameable submodule; only the
			// module itself (and its ancestors) become dependencies.
		}
	}
	return ref
}
