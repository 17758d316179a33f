package cmdexec

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func TestFunc_Run(t *testing.T) {
	t.Parallel()

	var gotDir, gotName string
	var gotArgs []string
	f := Func(func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return []byte("ok"), nil
	})

	out, err := f.Run(context.Background(), "/repo", "git", "rev-parse", "HEAD")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "ok" {
		t.Errorf("out = %q, want ok", out)
	}
	if gotDir != "/repo" || gotName != "git" || strings.Join(gotArgs, " ") != "rev-parse HEAD" {
		t.Errorf("got dir=%q name=%q args=%v", gotDir, gotName, gotArgs)
	}
}

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExec_Stdout(t *testing.T) {
	t.Parallel()
	requireSh(t)

	out, err := Exec{}.Run(context.Background(), "", "sh", "-c", "printf hello; printf noise >&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("out = %q, want hello", out)
	}
}

func TestExec_Dir(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()
	out, err := Exec{}.Run(context.Background(), dir, "sh", "-c", "pwd -P")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		t.Fatal("empty pwd output")
	}
}

func TestExec_NonZeroExitIncludesStderr(t *testing.T) {
	t.Parallel()
	requireSh(t)

	_, err := Exec{}.Run(context.Background(), "", "sh", "-c", "echo 'not a git repository' >&2; exit 128")
	if err == nil {
		t.Fatal("expected error on non-zero exit")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("error %v does not wrap *exec.ExitError", err)
	}
	if !strings.Contains(err.Error(), "not a git repository") {
		t.Errorf("error = %q, want stderr text", err)
	}
}

func TestExec_MissingBinary(t *testing.T) {
	t.Parallel()

	if _, err := (Exec{}).Run(context.Background(), "", "dbugger-no-such-binary"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
