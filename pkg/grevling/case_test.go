package grevling_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/capture"
	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/grevling"
	"github.com/TheBB/Grevling/pkg/paramspace"
	"github.com/TheBB/Grevling/pkg/script"
	"github.com/TheBB/Grevling/pkg/store"
)

func mustCapture(t *testing.T, pattern string, mode capture.Mode, hint *gtype.Type) *capture.Capture {
	t.Helper()
	c, err := capture.Compile(pattern, mode, hint)
	require.NoError(t, err)
	return c
}

// echoSweepSpec builds the nine-instance sweep: alpha in {1,2,3}, bravo
// in {"a","b","c"}, charlie = 2*alpha-1, one echo command capturing all
// three.
func echoSweepSpec(t *testing.T, storageDir string) grevling.CaseSpec {
	t.Helper()

	alpha, err := paramspace.NewListed("alpha", []any{int64(1), int64(2), int64(3)})
	require.NoError(t, err)
	bravo, err := paramspace.NewListed("bravo", []any{"a", "b", "c"})
	require.NoError(t, err)

	charlie := paramspace.Evaluable{Name: "charlie", Source: "2 * alpha - 1"}

	floatHint := gtype.NewFloat()
	echo := &script.Command{
		Name:        "echo",
		ShellString: `echo "alpha=${alpha} bravo=${bravo} charlie=${charlie}"`,
		Captures: []*capture.Capture{
			mustCapture(t, `alpha=(?P<seen_alpha>\d+)`, capture.First, nil),
			mustCapture(t, `bravo=(?P<seen_bravo>\w+)`, capture.First, nil),
			mustCapture(t, `charlie=(?P<seen_charlie>\d+)`, capture.First, &floatHint),
		},
	}

	return grevling.CaseSpec{
		Parameters: []paramspace.Parameter{alpha, bravo},
		Evaluables: []paramspace.Evaluable{charlie},
		Script:     script.Script{echo},
		StorageDir: storageDir,
	}
}

func TestCaseRunCollectEchoSweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	spec := echoSweepSpec(t, dir)

	c, err := grevling.New(spec)
	require.NoError(t, err)
	require.Len(t, c.Instances(), 9)

	result, err := c.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Completed)

	n, err := c.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, n)
}

func TestCaseRunFailingCommandPartitionsSuccess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	alpha, err := paramspace.NewListed("alpha", []any{int64(0), int64(1)})
	require.NoError(t, err)

	fails := &script.Command{
		Name:        "maybe",
		ShellString: `test ${alpha} -eq 0`,
	}
	spec := grevling.CaseSpec{
		Parameters: []paramspace.Parameter{alpha},
		Script:     script.Script{fails},
		StorageDir: dir,
	}

	c, err := grevling.New(spec)
	require.NoError(t, err)

	_, err = c.Run(ctx)
	require.NoError(t, err)

	n, err := c.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	db, err := store.Open(ctx, store.Config{Path: filepath.Join(dir, "grevling.db")})
	require.NoError(t, err)
	defer db.Close()
	for alphaVal, want := range map[int64]int64{0: 1, 1: 0} {
		var got int64
		require.NoError(t, db.QueryRowContext(ctx, `SELECT "g_success" FROM results WHERE "alpha" = ?`, alphaVal).Scan(&got))
		require.Equal(t, want, got, "alpha=%d", alphaVal)
	}
}

func TestCaseWhereFiltersSequentialIndices(t *testing.T) {
	dir := t.TempDir()

	alpha, err := paramspace.NewListed("alpha", []any{int64(0), int64(1), int64(2), int64(3), int64(4), int64(5), int64(6), int64(7)})
	require.NoError(t, err)

	spec := grevling.CaseSpec{
		Parameters: []paramspace.Parameter{alpha},
		Where:      []string{"alpha < 6"},
		Script:     script.Script{},
		StorageDir: dir,
	}

	c, err := grevling.New(spec)
	require.NoError(t, err)

	instances := c.Instances()
	require.Len(t, instances, 6)
	for i, inst := range instances {
		require.Equal(t, int64(i), inst["g_index"])
	}
}

func TestCaseCrashRecoverySkipsDownloaded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	spec := echoSweepSpec(t, dir)

	c, err := grevling.New(spec)
	require.NoError(t, err)

	_, err = c.Run(ctx)
	require.NoError(t, err)

	n1, err := c.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, n1)

	// A second Case built from the same storage root, as a fresh process
	// restarting after the first one exited, finds every instance
	// already Downloaded and re-runs nothing.
	c2, err := grevling.New(spec)
	require.NoError(t, err)

	result, err := c2.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), result.Submitted)

	n2, err := c2.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, n2)
}

// TestCaseRunSpaceBearingValueIsShellQuoted guards against ShellString
// substitution being rendered in Plain mode: a parameter value
// containing a space must survive as a single shell word, not be split
// into two argv entries or break the surrounding shell syntax.
func TestCaseRunSpaceBearingValueIsShellQuoted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	name, err := paramspace.NewListed("name", []any{"a b"})
	require.NoError(t, err)

	echo := &script.Command{
		Name:        "echo",
		ShellString: `echo name=${name}`,
		Captures: []*capture.Capture{
			mustCapture(t, `name=(?P<seen_name>.+)`, capture.First, nil),
		},
	}

	spec := grevling.CaseSpec{
		Parameters: []paramspace.Parameter{name},
		Script:     script.Script{echo},
		StorageDir: dir,
	}

	c, err := grevling.New(spec)
	require.NoError(t, err)

	result, err := c.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.Completed)

	n, err := c.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCaseCapture(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	spec := echoSweepSpec(t, dir)

	c, err := grevling.New(spec)
	require.NoError(t, err)

	_, err = c.Run(ctx)
	require.NoError(t, err)

	n, err := c.Capture(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, n)
}
