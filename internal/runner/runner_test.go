package runner

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// shCommand builds a Command running script under /bin/sh.
func shCommand(t *testing.T, script string) Command {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return NewCommand(sh, "", []string{"-c", script})
}

func TestExecProcessRunner_StartAndWait(t *testing.T) {
	r := NewExecProcessRunner()

	stdout, stderr, err := r.Start(context.Background(), shCommand(t, "echo hello"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	out, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatalf("ReadAll stdout failed: %v", err)
	}
	if string(out) != "hello\n" {
		t.Errorf("stdout = %q, want %q", string(out), "hello\n")
	}

	errOut, err := io.ReadAll(stderr)
	if err != nil {
		t.Fatalf("ReadAll stderr failed: %v", err)
	}
	if len(errOut) != 0 {
		t.Errorf("stderr = %q, want empty", string(errOut))
	}

	if err := r.Wait(); err != nil {
		t.Errorf("Wait failed: %v", err)
	}
}

func TestExecProcessRunner_Stderr(t *testing.T) {
	r := NewExecProcessRunner()

	stdout, stderr, err := r.Start(context.Background(), shCommand(t, "echo error >&2"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	_, _ = io.ReadAll(stdout)
	errOut, err := io.ReadAll(stderr)
	if err != nil {
		t.Fatalf("ReadAll stderr failed: %v", err)
	}
	if string(errOut) != "error\n" {
		t.Errorf("stderr = %q, want %q", string(errOut), "error\n")
	}

	_ = r.Wait()
}

func TestExecProcessRunner_WaitLeavesReadersOpen(t *testing.T) {
	r := NewExecProcessRunner()

	stdout, stderr, err := r.Start(context.Background(), shCommand(t, "echo one; echo two; echo three >&2"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	// Wait first; output must still be readable afterwards.
	if err := r.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	out, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatalf("ReadAll stdout after Wait: %v", err)
	}
	if string(out) != "one\ntwo\n" {
		t.Errorf("stdout = %q, want %q", out, "one\ntwo\n")
	}

	errOut, err := io.ReadAll(stderr)
	if err != nil {
		t.Fatalf("ReadAll stderr after Wait: %v", err)
	}
	if string(errOut) != "three\n" {
		t.Errorf("stderr = %q, want %q", errOut, "three\n")
	}
}

func TestExecProcessRunner_StdinIsEmpty(t *testing.T) {
	r := NewExecProcessRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout, stderr, err := r.Start(ctx, shCommand(t, "cat; echo done"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	done := make(chan []byte)
	go func() {
		out, _ := io.ReadAll(stdout)
		done <- out
	}()

	select {
	case out := <-done:
		if string(out) != "done\n" {
			t.Errorf("stdout = %q, want %q", out, "done\n")
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("child blocked reading stdin")
	}

	_ = r.Wait()
}

func TestExecProcessRunner_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	cmd := shCommand(t, "pwd")
	cmd.Dir = dir

	r := NewExecProcessRunner()
	stdout, stderr, err := r.Start(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	out, _ := io.ReadAll(stdout)
	_ = r.Wait()

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	if got != want {
		t.Errorf("child cwd = %q, want %q", got, want)
	}
}

func TestExecProcessRunner_ArgumentsNotShellInterpreted(t *testing.T) {
	cmd := shCommand(t, `printf '%s\n' "$@"`)
	cmd.Args = append(cmd.Args, "sh", "a b", "$HOME", "*")

	r := NewExecProcessRunner()
	stdout, stderr, err := r.Start(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	out, _ := io.ReadAll(stdout)
	_ = r.Wait()

	if got, want := string(out), "a b\n$HOME\n*\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestExecProcessRunner_AlreadyStarted(t *testing.T) {
	r := NewExecProcessRunner()

	stdout, stderr, err := r.Start(context.Background(), shCommand(t, "true"))
	if err != nil {
		t.Fatalf("First Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	if _, _, err := r.Start(context.Background(), shCommand(t, "true")); err == nil {
		t.Error("Second Start should fail")
	}

	_ = r.Wait()
}

func TestExecProcessRunner_WaitNotStarted(t *testing.T) {
	r := NewExecProcessRunner()

	if err := r.Wait(); err == nil {
		t.Error("Wait without Start should fail")
	}
}

func TestExecProcessRunner_SignalledChild(t *testing.T) {
	r := NewExecProcessRunner()

	stdout, stderr, err := r.Start(context.Background(), shCommand(t, "kill -9 $$"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	_, _ = io.ReadAll(stdout)
	code, err := ExitCode(r.Wait())
	if err != nil {
		t.Fatalf("ExitCode error: %v", err)
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1 for a signalled child", code)
	}
}

func TestExecProcessRunner_ContextCancel(t *testing.T) {
	r := NewExecProcessRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	stdout, stderr, err := r.Start(ctx, shCommand(t, "exec sleep 10"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stdout.Close()
	defer stderr.Close()

	if err := r.Wait(); err == nil {
		t.Error("Wait should fail after the context expires")
	}
}

func TestExecProcessRunner_InvalidCommand(t *testing.T) {
	r := NewExecProcessRunner()

	path := filepath.Join(t.TempDir(), "nonexistent-command-12345")
	_, _, err := r.Start(context.Background(), NewCommand(path, "", nil))
	if err == nil {
		t.Error("Start with invalid command should fail")
	}
}

func TestExitCode(t *testing.T) {
	t.Run("nil is zero", func(t *testing.T) {
		code, err := ExitCode(nil)
		if code != 0 || err != nil {
			t.Errorf("ExitCode(nil) = %d, %v", code, err)
		}
	})

	t.Run("non-exit error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		code, err := ExitCode(boom)
		if code != -1 || !errors.Is(err, boom) {
			t.Errorf("ExitCode(boom) = %d, %v", code, err)
		}
	})

	t.Run("real exit status", func(t *testing.T) {
		r := NewExecProcessRunner()
		stdout, stderr, err := r.Start(context.Background(), shCommand(t, "exit 42"))
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer stdout.Close()
		defer stderr.Close()

		code, err := ExitCode(r.Wait())
		if err != nil {
			t.Fatalf("ExitCode error: %v", err)
		}
		if code != 42 {
			t.Errorf("exit code = %d, want 42", code)
		}
	})
}

func TestNewCommand(t *testing.T) {
	args := []string{"-v", "two words"}
	cmd := NewCommand("/usr/bin/tool", "/work", args)

	args[0] = "mutated"
	if cmd.Args[0] != "-v" {
		t.Error("NewCommand should copy args")
	}
	if got, want := cmd.CommandLine, "/usr/bin/tool -v 'two words'"; got != want {
		t.Errorf("CommandLine = %q, want %q", got, want)
	}
	if got, want := cmd.ArgumentString(), "-v two words"; got != want {
		t.Errorf("ArgumentString() = %q, want %q", got, want)
	}

	empty := NewCommand("/usr/bin/tool", "", nil)
	if empty.Args != nil || empty.ArgumentString() != "" || empty.CommandLine != "/usr/bin/tool" {
		t.Errorf("unexpected empty command: %+v", empty)
	}
}
