package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestImportPredicates(t *testing.T) {
	cases := []struct {
		in                        string
		thirdParty, module, infra bool
	}{
		{"fmt", false, false, false},
		{"net/http", false, false, false},
		{"go.uber.org/zap", true, false, false},
		{"vsmecore/pkg/domain", false, true, false},
		{"vsmecore/internal/infra/persistence/sqlite", false, true, true},
		{"vsmecore/internal/infra/blob/s3", false, true, true},
		{"vsmecore/internal/infra/blob/core", false, true, false},
		{"vsmecore/internal/infrastructure", false, true, false},
	}
	for _, c := range cases {
		if got := ThirdParty(c.in); got != c.thirdParty {
			t.Errorf("ThirdParty(%q)=%v want %v", c.in, got, c.thirdParty)
		}
		if got := ModuleImport(c.in); got != c.module {
			t.Errorf("ModuleImport(%q)=%v want %v", c.in, got, c.module)
		}
		if got := InfraImport(c.in); got != c.infra {
			t.Errorf("InfraImport(%q)=%v want %v", c.in, got, c.infra)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"go.uber.org/zap\"\n)\nvar _ = fmt.Sprint\nvar _ = zap.NewNop\n")
	write("a_test.go", "package tmp\nimport \"github.com/stretchr/testify/assert\"\nvar _ = assert.True\n")

	viols, err := directImportViolations(dir, ThirdParty)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "go.uber.org/zap (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestInfraViolations(t *testing.T) {
	pkgs := []*packages.Package{
		{PkgPath: "vsmecore/internal/storage", Imports: map[string]*packages.Package{
			"vsmecore/internal/infra/persistence/sqlite": nil,
		}},
		{PkgPath: "vsmecore/internal/infra/blob/fs", Imports: map[string]*packages.Package{
			"vsmecore/internal/infra/blob/core": nil,
		}},
		{PkgPath: "vsmecore/internal/report", Imports: map[string]*packages.Package{
			"vsmecore/internal/infra/blob/core":   nil,
			"vsmecore/internal/infra/blob/memory": nil,
		}},
	}
	got := infraViolations(pkgs)
	if len(got) != 1 || got[0] != "vsmecore/internal/report -> vsmecore/internal/infra/blob/memory" {
		t.Fatalf("unexpected violations %v", got)
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, _ ...any) { r.msg = format }

func TestFailIfViolations(t *testing.T) {
	var r recordingFatal
	failIfViolations(&r, "x", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfViolations(&r, "x", []string{"a"})
	if r.msg == "" {
		t.Fatal("expected failure")
	}
}
