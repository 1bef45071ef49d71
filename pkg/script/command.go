// Package script implements Command and Script execution: subprocess
// run with retry, stdout/stderr capture, container wrapping, and the
// append-only grevling.txt event log.
package script

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TheBB/Grevling/pkg/capture"
	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/render"
	"github.com/TheBB/Grevling/pkg/workspace"
)

// RetryBackoff configures the exponential pacing applied between
// retryOnFail attempts, via an x/time/rate limiter whose interval
// doubles each attempt up to Max. This bounds a hot-looping failure
// (e.g. a missing binary) from spinning the host, and bounds the total
// attempt count so an always-failing command terminates.
type RetryBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultRetryBackoff mirrors the pacing the crawler's listing rate
// limiter uses for transient-failure pacing.
func DefaultRetryBackoff() RetryBackoff {
	return RetryBackoff{Initial: 200 * time.Millisecond, Max: 10 * time.Second, MaxRetries: 5}
}

// Command is one subprocess invocation within a Script.
type Command struct {
	Name          string
	Argv          []string
	ShellString   string
	Env           map[string]string
	Workdir       string
	Container     string
	ContainerArgs []string
	RetryOnFail   bool
	AllowFailure  bool
	Captures      []*capture.Capture
	Backoff       RetryBackoff
}

// EffectiveName returns Name, defaulting to the basename of argv[0].
func (c *Command) EffectiveName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ShellString != "" {
		return "sh"
	}
	if len(c.Argv) > 0 {
		return filepath.Base(c.Argv[0])
	}
	return "command"
}

// result captures one subprocess attempt's outcome.
type result struct {
	exitCode int
	stdout   []byte
	stderr   []byte
	err      error
}

// Execute runs the command (with retries if configured) against cwd,
// rendering argv/env against ctx, writing <name>.stdout/<name>.stderr to
// logWs and appending g_walltime_<name> to events. It returns whether
// the command should be considered successful (exit==0 || AllowFailure).
func (c *Command) Execute(ctx context.Context, evalCtx map[string]any, cwd string, logWs workspace.Workspace, events EventLog, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := c.EffectiveName()

	argv, err := c.renderArgv(evalCtx)
	if err != nil {
		return false, gerr.Wrap("script.Command.Execute", name, err)
	}
	env, err := render.RenderMap(c.Env, evalCtx, render.Plain)
	if err != nil {
		return false, gerr.Wrap("script.Command.Execute", name, err)
	}
	workdir := cwd
	if c.Workdir != "" {
		rendered, err := render.Render(c.Workdir, evalCtx)
		if err != nil {
			return false, gerr.Wrap("script.Command.Execute", name, err)
		}
		workdir = rendered
	}

	if c.Container != "" {
		argv = c.wrapContainer(argv, env, cwd)
		env = nil
	}

	backoff := c.Backoff
	if backoff == (RetryBackoff{}) {
		backoff = DefaultRetryBackoff()
	}

	var res result
	attempt := 0
	for {
		start := time.Now()
		res = runOnce(ctx, argv, env, workdir)
		walltime := time.Since(start).Seconds()

		if err := logWs.WriteAll(name+".stdout", res.stdout); err != nil {
			return false, gerr.Wrap("script.Command.Execute", name, err)
		}
		if err := logWs.WriteAll(name+".stderr", res.stderr); err != nil {
			return false, gerr.Wrap("script.Command.Execute", name, err)
		}
		if events != nil {
			if err := events.Append("g_walltime_"+name, strconv.FormatFloat(walltime, 'f', -1, 64)); err != nil {
				return false, err
			}
		}

		if res.err != nil && ctx.Err() != nil {
			return false, ctx.Err()
		}

		if res.exitCode == 0 || !c.RetryOnFail {
			break
		}
		attempt++
		if attempt > backoff.MaxRetries {
			logger.Warn("script: retry budget exhausted", zap.String("command", name), zap.Int("attempts", attempt))
			break
		}
		delay := backoffDelay(backoff, attempt)
		logger.Info("script: retrying after failure", zap.String("command", name), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		limiter := rate.NewLimiter(rate.Every(delay), 1)
		limiter.Allow() // spend the initial burst token so the wait below lasts delay
		if err := limiter.WaitN(ctx, 1); err != nil {
			return false, ctx.Err()
		}
	}

	ok := res.exitCode == 0 || c.AllowFailure
	return ok, nil
}

func backoffDelay(b RetryBackoff, attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

func (c *Command) renderArgv(evalCtx map[string]any) ([]string, error) {
	if c.ShellString != "" {
		rendered, err := render.RenderMode(c.ShellString, evalCtx, render.Shell)
		if err != nil {
			return nil, err
		}
		return []string{"sh", "-c", rendered}, nil
	}
	return render.RenderList(c.Argv, evalCtx, render.Plain)
}

// wrapContainer builds the docker-run invocation described in the spec:
// argv is mounted at /workdir and executed via `sh -c`. Environment
// entries are passed explicitly with `-e KEY=VALUE`, a documented
// divergence from the source (which relies on docker inheriting no
// ambient environment).
func (c *Command) wrapContainer(argv []string, env map[string]string, cwd string) []string {
	wrapped := []string{"docker", "run"}
	wrapped = append(wrapped, c.ContainerArgs...)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		wrapped = append(wrapped, "-e", k+"="+env[k])
	}

	wrapped = append(wrapped, "-v", cwd+":/workdir", "--workdir", "/workdir", c.Container, "sh", "-c", quotedJoin(argv))
	return wrapped
}

func quotedJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = render.QuoteShell(a)
	}
	out := ""
	for i, q := range quoted {
		if i > 0 {
			out += " "
		}
		out += q
	}
	return out
}

// runOnce starts argv once, reading stdout and stderr line by line into
// buffers for persistence (lines are not logged as they arrive), and
// returns once the process exits or ctx is cancelled.
func runOnce(ctx context.Context, argv []string, env map[string]string, workdir string) result {
	if len(argv) == 0 {
		return result{exitCode: -1, err: fmt.Errorf("script: empty argv")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Env = mergeEnv(os.Environ(), env)
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return result{exitCode: -1, err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return result{exitCode: -1, err: err}
	}

	if err := cmd.Start(); err != nil {
		return result{exitCode: -1, err: err}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			stdoutBuf.WriteString(scanner.Text())
			stdoutBuf.WriteByte('\n')
		}
	}()
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteByte('\n')
		}
	}()

	waitErr := cmd.Wait()
	<-done
	<-stderrDone

	if ctx.Err() != nil {
		killProcessGroup(cmd)
		return result{exitCode: -1, stdout: stdoutBuf.Bytes(), stderr: stderrBuf.Bytes(), err: ctx.Err()}
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return result{exitCode: -1, stdout: stdoutBuf.Bytes(), stderr: stderrBuf.Bytes(), err: waitErr}
		}
	}

	return result{exitCode: exitCode, stdout: stdoutBuf.Bytes(), stderr: stderrBuf.Bytes()}
}

func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	for k, v := range overlay {
		out = append(out, k+"="+v)
	}
	return out
}
