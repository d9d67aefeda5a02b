package main

import (
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/sidekick/internal/config"
)

const helperEnv = "SIDEKICK_HELPER_MODE_PROMPT"

// TestHelperModePrompt is run as a child process by
// TestRun_InterruptAtModePrompt.
func TestHelperModePrompt(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		t.Skip("helper process")
	}
	os.Exit(run(&config.Config{}))
}

func TestRun_InterruptAtModePrompt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs POSIX signals")
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperModePrompt$")
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	defer stdin.Close()
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	prompted := make(chan struct{})
	go func() {
		var seen bytes.Buffer
		buf := make([]byte, 256)
		signalled := false
		for {
			n, err := stdout.Read(buf)
			seen.Write(buf[:n])
			if !signalled && strings.Contains(seen.String(), "Digite 1 ou 2") {
				signalled = true
				close(prompted)
			}
			if err != nil {
				if !signalled {
					close(prompted)
				}
				return
			}
		}
	}()

	select {
	case <-prompted:
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("mode prompt never shown")
	}

	require.NoError(t, cmd.Process.Signal(syscall.SIGINT))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.False(t, exitErr.Success())
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
		t.Fatal("interrupt at the mode prompt did not stop the process")
	}
}
