// Package testutil holds test helpers that enforce package boundaries across
// vsmecore.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const (
	modulePath  = "vsmecore"
	infraPrefix = modulePath + "/internal/infra"
	// blob/core only declares the archive contract and may be imported anywhere.
	blobContract = infraPrefix + "/blob/core"
)

// InfraOwners are the packages allowed to import concrete backends.
var InfraOwners = []string{
	modulePath + "/internal/storage",
	infraPrefix,
}

// ThirdParty reports whether path is outside the standard library and this module.
func ThirdParty(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

// ModuleImport reports whether path belongs to this module.
func ModuleImport(path string) bool {
	return path == modulePath || strings.HasPrefix(path, modulePath+"/")
}

// InfraImport reports whether path names a concrete backend package.
func InfraImport(path string) bool {
	if path == blobContract || strings.HasPrefix(path, blobContract+"/") {
		return false
	}
	return path == infraPrefix || strings.HasPrefix(path, infraPrefix+"/")
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import satisfies forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, "forbidden direct imports ("+reason+")", viols)
}

// AssertInfraConfined loads pattern (e.g. "vsmecore/...") without test files
// and fails if a package outside InfraOwners imports a concrete backend.
func AssertInfraConfined(t testing.TB, pattern string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "concrete backends imported outside internal/storage", infraViolations(pkgs))
}

func infraViolations(pkgs []*packages.Package) []string {
	var viols []string
	for _, pkg := range pkgs {
		if ownsInfra(pkg.PkgPath) {
			continue
		}
		for path := range pkg.Imports {
			if InfraImport(path) {
				viols = append(viols, pkg.PkgPath+" -> "+path)
			}
		}
	}
	sort.Strings(viols)
	return viols
}

func ownsInfra(pkgPath string) bool {
	for _, owner := range InfraOwners {
		if pkgPath == owner || strings.HasPrefix(pkgPath, owner+"/") {
			return true
		}
	}
	return false
}

func directImportViolations(dir string, forbidden func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s:\n%s", what, strings.Join(viols, "\n"))
	}
}
