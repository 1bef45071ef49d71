// Package grevling implements the Case orchestrator: the glue that
// turns a CaseSpec into enumerated Instances, drives them through the
// Prepare->Run->Download pipeline, and materialises their captured
// output into a columnar result store.
package grevling

import (
	"sort"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/internal/grevlog"
	"github.com/TheBB/Grevling/pkg/capture"
	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/paramspace"
	"github.com/TheBB/Grevling/pkg/render"
	"github.com/TheBB/Grevling/pkg/script"
	"github.com/TheBB/Grevling/pkg/workspace"
	"github.com/TheBB/Grevling/pkg/workspace/local"
)

// Case owns a storage root and a validated CaseSpec: the whole
// parametric experiment.
type Case struct {
	spec   CaseSpec
	config Config
	mgr    *gtype.Manager
	tuples []paramspace.Context

	storageWs workspace.Workspace
	logger    *zap.Logger
}

// New validates spec (enumerating its parameter space and inferring any
// undeclared types) and prepares the storage root. The returned Case's
// Instances() is then cheap to iterate repeatedly.
func New(spec CaseSpec, opts ...Option) (*Case, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := grevlog.OrNop(cfg.Logger)

	space := paramspace.NewSpace()
	for _, p := range spec.Parameters {
		space.Add(p)
	}

	provider := paramspace.NewContextProvider(space)
	if spec.Constants != nil {
		provider.Constants = spec.Constants
	}
	provider.Evaluables = spec.Evaluables
	provider.Where = spec.Where

	tuples, err := provider.Enumerate()
	if err != nil {
		return nil, gerr.Wrap("grevling.New", "enumerate", err)
	}

	mgr := gtype.NewManager()
	mgr.Declare("g_index", gtype.NewInteger(), gtype.StagePre)
	mgr.Declare("g_logdir", gtype.NewString(), gtype.StagePre)

	names := collectNames(spec)
	inferred := paramspace.InferTypes(tuples, names, spec.Types)
	for _, name := range names {
		mgr.Declare(name, inferred[name], gtype.StagePre)
	}

	mgr.Declare("g_started", gtype.NewDateTime(), gtype.StagePost)
	mgr.Declare("g_finished", gtype.NewDateTime(), gtype.StagePost)
	mgr.Declare("g_success", gtype.NewBoolean(), gtype.StagePost)
	for _, cmd := range spec.Script {
		mgr.Declare("g_walltime_"+cmd.EffectiveName(), gtype.NewFloat(), gtype.StagePost)
	}
	capture.DeclareTypes(mgr, allCaptures(spec.Script))

	for _, cmd := range spec.Script {
		if cmd.Backoff == (script.RetryBackoff{}) {
			cmd.Backoff = cfg.RetryBackoff
		}
	}

	template := spec.logdirTemplate()
	for i := range tuples {
		logdir, err := render.Render(template, tuples[i])
		if err != nil {
			return nil, gerr.Wrap("grevling.New", "logdir template", err)
		}
		tuples[i]["g_logdir"] = logdir
	}

	storageWs, err := local.New(spec.StorageDir, "storage")
	if err != nil {
		return nil, gerr.Wrap("grevling.New", spec.StorageDir, err)
	}

	return &Case{
		spec:      spec,
		config:    cfg,
		mgr:       mgr,
		tuples:    tuples,
		storageWs: storageWs,
		logger:    logger,
	}, nil
}

// Instances returns every context this Case's parameter space, constants,
// evaluables, and where-predicates yield, each carrying a g_index and a
// rendered g_logdir. The slice is cached at construction time.
func (c *Case) Instances() []paramspace.Context {
	return c.tuples
}

// Manager exposes the Case's TypeManager, e.g. for callers that need to
// inspect TabularSchema before calling Collect.
func (c *Case) Manager() *gtype.Manager {
	return c.mgr
}

func (c *Case) lockPath() string {
	return c.spec.StorageDir + "/lockfile"
}

// collectNames gathers every declarable pre-stage name: parameters and
// evaluables in their declared order, then constants (a map, so sorted
// for determinism — constant order has no natural meaning, but a fixed
// order keeps TabularSchema and grevling.db columns stable across runs).
func collectNames(spec CaseSpec) []string {
	var names []string
	seen := make(map[string]bool)

	for _, p := range spec.Parameters {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	for _, ev := range spec.Evaluables {
		if !seen[ev.Name] {
			seen[ev.Name] = true
			names = append(names, ev.Name)
		}
	}

	constNames := make([]string, 0, len(spec.Constants))
	for k := range spec.Constants {
		if !seen[k] {
			constNames = append(constNames, k)
		}
	}
	sort.Strings(constNames)
	names = append(names, constNames...)

	return names
}

// allCaptures flattens every command's declared captures, in script
// order, for a single DeclareTypes pass over the TypeManager.
func allCaptures(scr script.Script) []*capture.Capture {
	var out []*capture.Capture
	for _, cmd := range scr {
		out = append(out, cmd.Captures...)
	}
	return out
}
