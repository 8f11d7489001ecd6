package changes

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDiff = `diff --git a/services/order/app.py b/services/order/app.py
index 83db48f..bf269f4 100644
--- a/services/order/app.py
+++ b/services/order/app.py
@@ -1,3 +1,3 @@
 import os
-PORT = 8000
+PORT = 8001
 print(PORT)
diff --git a/services/cart/new.py b/services/cart/new.py
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/services/cart/new.py
@@ -0,0 +1 @@
+x = 1
`

func TestFromUnifiedDiff(t *testing.T) {
	paths, err := FromUnifiedDiff(strings.NewReader(sampleDiff))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cs := NewChangeSet(paths...)
	if got := strings.Join(cs.Paths(), ","); got != "services/cart/new.py,services/order/app.py" {
		t.Fatalf("paths=%s", got)
	}
}

func TestReadPathList(t *testing.T) {
	paths, err := ReadPathList(strings.NewReader("# changed\nservices/api/main.go\n\n  web/index.ts  \n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(paths) != 2 || paths[1] != "web/index.ts" {
		t.Fatalf("unexpected paths %v", paths)
	}
}

func TestGitChangedFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		base := []string{"-C", root, "-c", "user.email=ci@example.com", "-c", "user.name=ci", "-c", "commit.gpgsign=false"}
		cmd := exec.Command("git", append(base, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(rel, body string) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	git("init", "-q")
	write("services/api/main.go", "package main\n")
	git("add", ".")
	git("commit", "-q", "-m", "init")
	write("services/web/index.ts", "export {}\n")
	git("add", ".")
	git("commit", "-q", "-m", "web")

	files, err := GitChangedFiles(context.Background(), root, "HEAD~1..HEAD")
	if err != nil {
		t.Fatalf("git changed files: %v", err)
	}
	if len(files) != 1 || files[0] != "services/web/index.ts" {
		t.Fatalf("unexpected files %v", files)
	}
	if files, err := GitChangedFiles(context.Background(), root, " "); err != nil || files != nil {
		t.Fatalf("empty range must be a no-op, got %v %v", files, err)
	}
}
