package grevling

import (
	"github.com/TheBB/Grevling/pkg/filemap"
	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/paramspace"
	"github.com/TheBB/Grevling/pkg/script"
)

// defaultLogdirTemplate renders each instance's storage directory name
// from its context when CaseSpec.LogdirTemplate is empty.
const defaultLogdirTemplate = "${g_index}"

// CaseSpec is the validated input contract the core consumes: a
// parameter space, the context-construction rules, the file staging and
// capture behavior, and where results live on disk. Building a CaseSpec
// from a configuration file or CLI flags is an explicit out-of-scope
// concern; callers construct this struct directly.
type CaseSpec struct {
	// Parameters is the ordered parameter list building the Cartesian
	// product. Order matters: it fixes Subspace/FullSpace iteration
	// order and therefore g_index assignment.
	Parameters []paramspace.Parameter

	// Constants are merged into every context without overriding an
	// explicit parameter value.
	Constants paramspace.Context

	// Evaluables are evaluated in declaration order after constants are
	// merged, each with access to every name defined so far.
	Evaluables []paramspace.Evaluable

	// Where holds filter-predicate expressions; a tuple is dropped
	// unless every predicate evaluates truthy.
	Where []string

	// Types declares the pre-stage type of any parameter, constant, or
	// evaluable whose type should not be inferred.
	Types map[string]gtype.Type

	// Premap stages input files into an instance's remote workspace
	// before its script runs.
	Premap filemap.FileMap

	// Postmap copies output files from an instance's remote workspace
	// back into its storage directory after its script runs.
	Postmap filemap.FileMap

	// Script is the ordered command list every instance executes.
	Script script.Script

	// StorageDir is the on-disk root holding one subdirectory per
	// instance, the lockfile, and grevling.db.
	StorageDir string

	// LogdirTemplate renders each instance's storage directory name
	// from its context. Defaults to "${g_index}".
	LogdirTemplate string
}

func (spec *CaseSpec) logdirTemplate() string {
	if spec.LogdirTemplate != "" {
		return spec.LogdirTemplate
	}
	return defaultLogdirTemplate
}
