// Command sqllint checks that every inline SQL constant starts with a
// unique "--sql <uuid>" audit marker. SQLRunner logs the marker with each
// query, so a missing or reused marker makes slow-query logs ambiguous.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlStatementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern   = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type markerSite struct {
	file string
	name string
	line int
}

type linter struct {
	fset    *token.FileSet
	markers map[string][]markerSite
	found   []violation
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	violations, err := lintTargets(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if report(os.Stderr, violations) {
		os.Exit(1)
	}
}

func lintTargets(targets []string) ([]violation, error) {
	l := &linter{fset: token.NewFileSet(), markers: make(map[string][]markerSite)}
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				if err := l.lintFile(target); err != nil {
					return nil, err
				}
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			return l.lintFile(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return l.finish(), nil
}

func (l *linter) lintFile(path string) error {
	file, err := parser.ParseFile(l.fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlStatementPattern.MatchString(raw) {
				continue
			}
			site := markerSite{file: path, name: joinNames(vs.Names), line: l.fset.Position(bl.Pos()).Line}
			marker := firstLine(raw)
			if !uuidMarkerPattern.MatchString(marker) {
				l.found = append(l.found, violation{
					file:    site.file,
					line:    site.line,
					name:    site.name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			l.markers[marker] = append(l.markers[marker], site)
		}
		return true
	})
	return nil
}

func (l *linter) finish() []violation {
	out := l.found
	for marker, sites := range l.markers {
		if len(sites) < 2 {
			continue
		}
		for _, s := range sites[1:] {
			out = append(out, violation{
				file:    s.file,
				line:    s.line,
				name:    s.name,
				message: fmt.Sprintf("marker %q already used by %s", strings.TrimPrefix(marker, "--sql "), sites[0].name),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		return out[i].line < out[j].line
	})
	return out
}

func report(w io.Writer, violations []violation) bool {
	if len(violations) == 0 {
		return false
	}
	fmt.Fprintln(w, "sqllint: SQL audit marker problems")
	for _, v := range violations {
		fmt.Fprintf(w, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
	}
	return true
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
