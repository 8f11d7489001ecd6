package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/monopipe/internal/changes"
	"github.com/example/monopipe/internal/runner"
)

const declarations = `
components:
  - id: payment
    paths: [services/payment/]
    commands:
      build: "true"
  - id: order
    paths: [services/order/]
    dependsOn: [payment]
    commands:
      build: "true"
      test: "%s"
  - id: web
    paths: [web/]
`

func writeRepo(t *testing.T, orderTest string) string {
	t.Helper()
	root := t.TempDir()
	content := strings.Replace(declarations, "%s", orderTest, 1)
	if err := os.WriteFile(filepath.Join(root, "monopipe.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write declarations: %v", err)
	}
	return root
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MONOPIPE_CONFIG", cfgPath)

	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Version:") || !strings.Contains(out, "GoVersion:") {
		t.Fatalf("unexpected version output: %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "", "validate", "--root", root)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "OK: 3 component(s), 9 task(s)") || !strings.Contains(out, "order      build,test,deploy  payment") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestValidateReportsCycleWithExitTwo(t *testing.T) {
	root := t.TempDir()
	decl := `
components:
  - id: a
    paths: [a/]
    dependsOn: [b]
  - id: b
    paths: [b/]
    dependsOn: [a]
  - id: c
    paths: [c/]
`
	if err := os.WriteFile(filepath.Join(root, "monopipe.yaml"), []byte(decl), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := execute(t, "", "validate", "--root", root)
	if code := exitCode(err); code != runner.ExitConfigError {
		t.Fatalf("exit code=%d err=%v", code, err)
	}
	var buf bytes.Buffer
	handleError(&buf, err)
	if !strings.Contains(buf.String(), "Hint: remove one dependsOn entry") {
		t.Fatalf("missing hint: %q", buf.String())
	}
}

func TestMissingDeclarationsIsConfigError(t *testing.T) {
	_, _, err := execute(t, "", "plan", "--root", t.TempDir())
	if code := exitCode(err); code != runner.ExitConfigError {
		t.Fatalf("exit code=%d err=%v", code, err)
	}
}

func TestAffectedJSON(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "", "affected", "--root", root, "-o", "json", "services/order/api.go", "README.md")
	if err != nil {
		t.Fatalf("affected: %v", err)
	}
	var res changes.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if strings.Join(res.Changed, ",") != "order" || strings.Join(res.Affected, ",") != "payment,order" || len(res.Unmatched) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAffectedReadsChangedFileFromStdin(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "web/index.html\n", "affected", "--root", root, "--changed-file", "-")
	if err != nil {
		t.Fatalf("affected: %v", err)
	}
	if !strings.Contains(out, "web") || strings.Contains(out, "payment") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestEnvironmentSetsFlagDefaults(t *testing.T) {
	root := writeRepo(t, "true")
	t.Setenv("MONOPIPE_OUTPUT", "yaml")
	out, _, err := execute(t, "", "affected", "--root", root, "web/a.js")
	if err != nil {
		t.Fatalf("affected: %v", err)
	}
	if !strings.Contains(out, "affected:\n- web") {
		t.Fatalf("expected yaml output, got:\n%s", out)
	}
}

func TestPlanTable(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "", "plan", "--root", root, "services/order/main.go")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, want := range []string{"6 task(s)", "payment:deploy -> order:build", "Pending (gated)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunDryRun(t *testing.T) {
	root := writeRepo(t, "false")
	out, errOut, err := execute(t, "", "run", "--root", root, "--dry-run", "services/order/main.go")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(errOut, "would run order:test: false") {
		t.Fatalf("dry run did not print commands:\n%s", errOut)
	}
	if !strings.Contains(out, "STATUS    Succeeded") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestRunFailingTaskExitsOne(t *testing.T) {
	root := writeRepo(t, "false")
	out, _, err := execute(t, "", "run", "--root", root, "services/order/main.go")
	if code := exitCode(err); code != runner.ExitTaskFailure {
		t.Fatalf("exit code=%d err=%v", code, err)
	}
	for _, want := range []string{"STATUS    Failed", "order:test", "script_failure", "order:deploy"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunEmptyChangeSetSucceeds(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "", "run", "--root", root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "tasks=0") || !strings.Contains(out, "STATUS    Succeeded") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestRunDetachedDoesNotAdoptChildFailure(t *testing.T) {
	root := writeRepo(t, "false")
	out, errOut, err := execute(t, "", "run", "--root", root, "--strategy", "detached", "services/order/main.go")
	if err != nil {
		t.Fatalf("detached run should not fail the call: %v", err)
	}
	if !strings.Contains(errOut, "started detached") || !strings.Contains(out, "STATUS    Failed") {
		t.Fatalf("unexpected output:\nstdout:\n%s\nstderr:\n%s", out, errOut)
	}
}

func TestRunWritesMetricsFile(t *testing.T) {
	root := writeRepo(t, "true")
	metricsPath := filepath.Join(t.TempDir(), "monopipe.prom")
	_, _, err := execute(t, "", "run", "--root", root, "--metrics-file", metricsPath, "web/a.js")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	raw, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), `monopipe_runs_total{status="Succeeded"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", raw)
	}
}

func TestRunUsageErrorsExitTwo(t *testing.T) {
	root := writeRepo(t, "true")
	cases := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"run", "--root", root, "--bogus"}},
		{name: "max parallel", args: []string{"run", "--root", root, "--max-parallel", "0"}},
		{name: "strategy", args: []string{"run", "--root", root, "--strategy", "later"}},
		{name: "stage limit", args: []string{"run", "--root", root, "--stage-limit", "lint=1"}},
		{name: "skip policy", args: []string{"plan", "--root", root, "--skip-policy", "never"}},
		{name: "output", args: []string{"plan", "--root", root, "-o", "html"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, "", tc.args...)
			if code := exitCode(err); code != runner.ExitConfigError {
				t.Fatalf("exit code=%d err=%v", code, err)
			}
		})
	}
}

func TestEmitWritesAndChecks(t *testing.T) {
	root := writeRepo(t, "true")
	pipeline := filepath.Join(t.TempDir(), "child.yml")
	if _, _, err := execute(t, "", "emit", "--root", root, "--out", pipeline, "services/order/main.go"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, errOut, err := execute(t, "", "emit", "--root", root, "--check", pipeline, "services/order/main.go"); err != nil || !strings.Contains(errOut, "up to date") {
		t.Fatalf("check should pass: %v %s", err, errOut)
	}
	out, _, err := execute(t, "", "emit", "--root", root, "--check", pipeline, "web/a.js")
	if code := exitCode(err); code != runner.ExitTaskFailure {
		t.Fatalf("drift should fail, exit code=%d err=%v", code, err)
	}
	if !strings.Contains(out, "+++ generated") || !strings.Contains(out, "web:build") {
		t.Fatalf("expected diff, got:\n%s", out)
	}
}

func TestEmitDOT(t *testing.T) {
	root := writeRepo(t, "true")
	out, _, err := execute(t, "", "emit", "--root", root, "--format", "dot", "web/a.js")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !strings.HasPrefix(out, "digraph monopipe {") || !strings.Contains(out, `"web:build" -> "web:test";`) {
		t.Fatalf("unexpected dot:\n%s", out)
	}
}
