package script

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/pkg/capture"
	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/workspace"
)

// Script is an ordered list of Commands, executed sequentially. The
// first failing command (exit != 0 and !AllowFailure) aborts the
// script with g_success=false; later commands are not run.
type Script []*Command

// Run executes every command in cwd, writing stdout/stderr and the
// walltime event for each to logWs, and brackets the whole run with
// g_started/g_finished/g_success records in events. It returns whether
// every command in the script succeeded.
func (s Script) Run(ctx context.Context, evalCtx map[string]any, cwd string, logWs workspace.Workspace, events EventLog, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := events.Append("g_started", formatNow()); err != nil {
		return false, err
	}

	success := true
	var runErr error
	defer func() {
		_ = events.Append("g_finished", formatNow())
	}()

	for _, cmd := range s {
		ok, err := cmd.Execute(ctx, evalCtx, cwd, logWs, events, logger)
		if err != nil {
			runErr = err
			success = false
			break
		}
		if !ok {
			logger.Info("script: command failed, aborting script", zap.String("command", cmd.EffectiveName()))
			success = false
			break
		}
	}

	if success {
		if err := events.Append("g_success", "1"); err != nil {
			return false, err
		}
	} else {
		if err := events.Append("g_success", "0"); err != nil {
			return false, err
		}
	}

	return success, runErr
}

// Capture re-runs each command's declared captures against its
// persisted stdout, without rerunning the command. col accumulates
// every command's extracted values.
func (s Script) Capture(logWs workspace.Workspace, col *capture.Collector) error {
	for _, cmd := range s {
		if len(cmd.Captures) == 0 {
			continue
		}
		stdout, err := readAll(logWs, cmd.EffectiveName()+".stdout")
		if err != nil {
			return gerr.Wrap("script.Script.Capture", cmd.EffectiveName(), err)
		}
		for _, c := range cmd.Captures {
			col.Apply(c, stdout)
		}
	}
	return nil
}

func readAll(ws workspace.Workspace, path string) (string, error) {
	if !ws.Exists(path) {
		return "", nil
	}
	r, err := ws.OpenRead(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatNow() string {
	return time.Now().UTC().Format(gtype.DateTimeLayout)
}
