package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/script"
	"github.com/TheBB/Grevling/pkg/workspace/local"
)

func TestCommandExecuteShellStringQuotesSpaceBearingValue(t *testing.T) {
	ctx := context.Background()
	logWs, err := local.New(t.TempDir(), "log")
	require.NoError(t, err)
	events := script.NewWorkspaceEventLog(logWs, "grevling.txt")

	cmd := &script.Command{
		Name:        "echo",
		ShellString: `echo ${bravo}`,
	}

	ok, err := cmd.Execute(ctx, map[string]any{"bravo": "a b"}, t.TempDir(), logWs, events, nil)
	require.NoError(t, err)
	require.True(t, ok)

	r, err := logWs.OpenRead("echo.stdout")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	require.Equal(t, "a b\n", string(buf[:n]))
}

func TestCommandExecuteShellStringRejectsInjection(t *testing.T) {
	ctx := context.Background()
	logWs, err := local.New(t.TempDir(), "log")
	require.NoError(t, err)
	events := script.NewWorkspaceEventLog(logWs, "grevling.txt")
	cwd := t.TempDir()

	cmd := &script.Command{
		Name:        "echo",
		ShellString: `echo ${payload}`,
	}

	ok, err := cmd.Execute(ctx, map[string]any{"payload": "safe; touch injected"}, cwd, logWs, events, nil)
	require.NoError(t, err)
	require.True(t, ok)

	r, err := logWs.OpenRead("echo.stdout")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	require.Equal(t, "safe; touch injected\n", string(buf[:n]))

	_, statErr := os.Stat(filepath.Join(cwd, "injected"))
	require.True(t, os.IsNotExist(statErr))
}

func TestCommandExecuteArgvRendersPlain(t *testing.T) {
	ctx := context.Background()
	logWs, err := local.New(t.TempDir(), "log")
	require.NoError(t, err)
	events := script.NewWorkspaceEventLog(logWs, "grevling.txt")

	cmd := &script.Command{
		Name: "echo",
		Argv: []string{"echo", "${bravo}"},
	}

	ok, err := cmd.Execute(ctx, map[string]any{"bravo": "a b"}, t.TempDir(), logWs, events, nil)
	require.NoError(t, err)
	require.True(t, ok)

	r, err := logWs.OpenRead("echo.stdout")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	require.Equal(t, "a b\n", string(buf[:n]))
}
