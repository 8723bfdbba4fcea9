// Go AST-based extractor for translation helper calls.
//
// Matches calls like T("messages.welcome"), i18n.T("auth.failed") or
// __("Hello World") where the first argument is a string literal (or a
// concatenation of literals).

package extract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

// scanGoFile parses a single Go file and records matching calls.
func (s *Scanner) scanGoFile(path string, c *collector) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return err
	}

	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}

		funcName := s.goFuncName(call.Fun)
		if funcName == "" {
			return true
		}

		literal, ok := stringFromExpr(call.Args[0])
		if !ok {
			return true // not a literal: dynamic key
		}
		c.add(funcName, literal)
		return true
	})

	return nil
}

// goFuncName returns the configured function name a call refers to,
// or "" when the call is not a translation helper.
func (s *Scanner) goFuncName(fun ast.Expr) string {
	switch fn := fun.(type) {
	case *ast.Ident:
		// Direct call: T("...")
		if s.funcs[fn.Name] {
			return fn.Name
		}
	case *ast.SelectorExpr:
		// Prefer the qualified "pkg.Func" form when configured.
		if ident, ok := fn.X.(*ast.Ident); ok {
			qualified := ident.Name + "." + fn.Sel.Name
			if s.funcs[qualified] {
				return qualified
			}
		}
		if s.funcs[fn.Sel.Name] {
			return fn.Sel.Name
		}
	}
	return ""
}

// stringFromExpr extracts a string value from an AST expression.
// Handles string literals and simple concatenation (e.g. "foo" + "bar").
func stringFromExpr(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			s, err := strconv.Unquote(e.Value)
			if err != nil {
				return "", false
			}
			return s, true
		}
	case *ast.BinaryExpr:
		if e.Op == token.ADD {
			left, lok := stringFromExpr(e.X)
			right, rok := stringFromExpr(e.Y)
			if lok && rok {
				return left + right, true
			}
		}
	case *ast.ParenExpr:
		return stringFromExpr(e.X)
	}
	return "", false
}
