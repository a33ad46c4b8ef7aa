package pty

import (
	"bufio"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestSpawnEchoAndExit(t *testing.T) {
	h, serr := Spawn([]string{"/bin/sh", "-c", "echo hi; exit 0"}, nil, "", 80, 24, nil, "test-session")
	if serr != nil {
		t.Fatalf("spawn failed: %v", serr)
	}
	defer h.Close()

	reader := bufio.NewReader(h)
	found := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if strings.Contains(line, "hi") {
			found = true
			break
		}
		if err != nil {
			break
		}
	}
	if !found {
		t.Fatalf("expected output to contain 'hi'")
	}

	code, _ := h.Wait()
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestSpawnCommandNotFound(t *testing.T) {
	_, serr := Spawn([]string{"/definitely/not/a/real/binary-xyz"}, nil, "", 80, 24, nil, "")
	if serr == nil {
		t.Fatalf("expected spawn error")
	}
}

func TestKillIdempotent(t *testing.T) {
	h, serr := Spawn([]string{"/bin/sh", "-c", "sleep 30"}, nil, "", 80, 24, nil, "")
	if serr != nil {
		t.Fatalf("spawn failed: %v", serr)
	}
	if err := h.Kill(syscall.SIGKILL); err != nil {
		t.Fatalf("first kill failed: %v", err)
	}
	if err := h.Kill(syscall.SIGKILL); err != nil {
		t.Fatalf("second kill should be a no-op success: %v", err)
	}
	h.Close()
}

func TestResolveCommandAlias(t *testing.T) {
	argv, kind := resolveCommand([]string{"myshell", "-i"}, AliasTable{"myshell": "/bin/sh"})
	if kind != ResolvedAlias || argv[0] != "/bin/sh" {
		t.Fatalf("expected alias resolution to /bin/sh, got %v (%s)", argv, kind)
	}
}

func TestBuildEnvIncludesSessionGuard(t *testing.T) {
	env := buildEnv(map[string]string{"FOO": "bar"}, "sess-1")
	joined := strings.Join(env, "\n")
	if !strings.Contains(joined, "FOO=bar") {
		t.Fatalf("expected FOO=bar in env")
	}
	if !strings.Contains(joined, SessionEnvVar+"=sess-1") {
		t.Fatalf("expected session guard env var")
	}
}
