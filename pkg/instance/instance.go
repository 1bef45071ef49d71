// Package instance implements the per-instance state machine and
// durable book-keeping: logdir ownership, the monotonic
// created->prepared->started->finished->downloaded status, and the
// context.json/captured.json/grevling.txt/status.txt file contract.
package instance

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/pkg/capture"
	"github.com/TheBB/Grevling/pkg/filemap"
	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/script"
	"github.com/TheBB/Grevling/pkg/workspace"
)

const (
	bookkeepingDir = ".grevling"
	statusFile     = "status.txt"
	contextFile    = "context.json"
	capturedFile   = "captured.json"
	eventLogFile   = "grevling.txt"
)

// Instance is one execution of a Script for one parameter tuple,
// identified by Logdir. It owns its logdir subtree exclusively; callers
// must not run two Instances over the same logdir concurrently.
type Instance struct {
	Logdir  string
	Context map[string]any

	storage workspace.Workspace // <case-storage>/<logdir>
	book    workspace.Workspace // <case-storage>/<logdir>/.grevling
	status  Status               // "" means unset; re-read from disk
	mgr     *gtype.Manager
	logger  *zap.Logger
}

// Peek reports the persisted status of logdir within storageRoot
// without creating any book-keeping directory, so callers that only
// want to know whether an instance has reached Downloaded (Case.Collect,
// Case.Capture) never conjure a Created instance for parameter tuples
// that have not been run yet. The second return is false when no
// status.txt exists yet.
func Peek(storageRoot workspace.Workspace, logdir string) (Status, bool, error) {
	path := logdir + "/" + bookkeepingDir + "/" + statusFile
	if !storageRoot.Exists(path) {
		return "", false, nil
	}
	r, err := storageRoot.OpenRead(path)
	if err != nil {
		return "", false, gerr.Wrap("instance.Peek", logdir, err)
	}
	defer r.Close()
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	st, err := ParseStatus(string(buf[:n]))
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

// New constructs (or reopens) the Instance rooted at logdir within
// storageRoot. If the instance has never been persisted, its context is
// written and status set to Created.
func New(storageRoot workspace.Workspace, logdir string, ctx map[string]any, mgr *gtype.Manager, logger *zap.Logger) (*Instance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	inst := &Instance{
		Logdir:  logdir,
		Context: ctx,
		mgr:     mgr,
		logger:  logger,
	}

	instanceWs, err := storageRoot.Subspace(logdir)
	if err != nil {
		return nil, gerr.Wrap("instance.New", logdir, err)
	}
	inst.storage = instanceWs

	book, err := instanceWs.Subspace(bookkeepingDir)
	if err != nil {
		return nil, gerr.Wrap("instance.New", logdir, err)
	}
	inst.book = book

	if inst.book.Exists(statusFile) {
		st, err := inst.readStatus()
		if err != nil {
			return nil, err
		}
		inst.status = st
		decoded, err := inst.readContext()
		if err == nil {
			inst.Context = decoded
		}
		return inst, nil
	}

	if err := inst.persistContext(); err != nil {
		return nil, err
	}
	if err := inst.setStatus(Created); err != nil {
		return nil, err
	}
	return inst, nil
}

// Status re-reads status.txt whenever the in-memory cache is unset,
// matching the recovery-after-crash contract: a fresh process asking
// about an Instance it did not itself construct this run still gets the
// persisted truth.
func (inst *Instance) Status() (Status, error) {
	if inst.status != "" {
		return inst.status, nil
	}
	return inst.readStatus()
}

func (inst *Instance) readStatus() (Status, error) {
	r, err := inst.book.OpenRead(statusFile)
	if err != nil {
		return "", gerr.Wrap("instance.Status", inst.Logdir, err)
	}
	defer r.Close()
	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	st, err := ParseStatus(string(buf[:n]))
	if err != nil {
		return "", err
	}
	inst.status = st
	return st, nil
}

func (inst *Instance) setStatus(to Status) error {
	if inst.status != "" {
		if err := inst.status.validateTransition(to); err != nil {
			return gerr.Wrap("instance.setStatus", inst.Logdir, err)
		}
	}
	if err := inst.book.WriteAll(statusFile, []byte(string(to))); err != nil {
		return gerr.Wrap("instance.setStatus", inst.Logdir, err)
	}
	inst.status = to
	return nil
}

func (inst *Instance) persistContext() error {
	data, err := EncodeContext(inst.mgr, inst.Context)
	if err != nil {
		return gerr.Wrap("instance.persistContext", inst.Logdir, err)
	}
	if err := inst.book.WriteAll(contextFile, data); err != nil {
		return gerr.Wrap("instance.persistContext", inst.Logdir, err)
	}
	return nil
}

func (inst *Instance) readContext() (map[string]any, error) {
	r, err := inst.book.OpenRead(contextFile)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return DecodeContext(inst.mgr, buf)
}

// Prepare stages premap's pre-files from sourceWs into remoteWs, then
// advances status to Prepared.
func (inst *Instance) Prepare(premap filemap.FileMap, sourceWs, remoteWs workspace.Workspace, ignoreMissing bool) error {
	// An instance left at Started or Finished by an interrupted run is
	// re-driven from the start of its lifecycle.
	if st, err := inst.Status(); err == nil && (st == Started || st == Finished) {
		inst.status = Created
	}
	ok, err := premap.Apply(inst.Context, sourceWs, remoteWs, ignoreMissing, inst.logger)
	if err != nil {
		return gerr.Wrap("instance.Prepare", inst.Logdir, err)
	}
	if !ok {
		return gerr.Wrap("instance.Prepare", inst.Logdir, gerr.ErrMissingSource)
	}
	return inst.setStatus(Prepared)
}

// Run executes scr against remoteWs, bracketing the Started/Finished
// transitions around Script.Run. events is the grevling.txt sink for
// remoteWs's book-keeping subspace (created fresh per remote workspace).
func (inst *Instance) Run(ctx context.Context, scr script.Script, remoteWs workspace.Workspace, remoteBook workspace.Workspace) (bool, error) {
	if err := inst.setStatus(Started); err != nil {
		return false, err
	}
	cwd := remoteWs.Name()
	if rooted, ok := remoteWs.(workspace.Rooted); ok {
		cwd = rooted.Root()
	}
	events := script.NewWorkspaceEventLog(remoteBook, eventLogFile)
	success, err := scr.Run(ctx, inst.Context, cwd, remoteBook, events, inst.logger)
	if setErr := inst.setStatus(Finished); setErr != nil && err == nil {
		err = setErr
	}
	return success, err
}

// Download copies the remote book-keeping subspace back into storage,
// optionally applies postmap (unless the run failed and ignoreMissing is
// false), re-runs capture against the downloaded stdout files, persists
// captured.json, and advances status to Downloaded.
func (inst *Instance) Download(scr script.Script, remoteWs, remoteBook workspace.Workspace, postmap filemap.FileMap, ignoreMissing bool) error {
	if err := copyBookkeeping(remoteBook, inst.book); err != nil {
		return gerr.Wrap("instance.Download", inst.Logdir, err)
	}

	events, err := readEventLog(inst.book)
	if err != nil {
		return gerr.Wrap("instance.Download", inst.Logdir, err)
	}
	success := events["g_success"] == "1"

	if ignoreMissing || success {
		if _, err := postmap.Apply(inst.Context, remoteWs, inst.storage, ignoreMissing, inst.logger); err != nil {
			return gerr.Wrap("instance.Download", inst.Logdir, err)
		}
	}

	if err := inst.Recapture(scr); err != nil {
		return err
	}
	return inst.setStatus(Downloaded)
}

// Recapture re-runs scr's captures against the instance's already
// downloaded book-keeping subspace (its persisted <cmd>.stdout files and
// grevling.txt event log), without touching the remote workspace or
// rerunning any command. It overwrites captured.json and is safe to call
// repeatedly, including from Case.Capture against instances that reached
// Downloaded in an earlier process.
func (inst *Instance) Recapture(scr script.Script) error {
	col := capture.NewCollector()
	if err := scr.Capture(inst.book, col); err != nil {
		return gerr.Wrap("instance.Recapture", inst.Logdir, err)
	}
	captured, err := col.Coerce(inst.mgr)
	if err != nil {
		return gerr.Wrap("instance.Recapture", inst.Logdir, err)
	}

	events, err := readEventLog(inst.book)
	if err != nil {
		return gerr.Wrap("instance.Recapture", inst.Logdir, err)
	}
	for key, raw := range events {
		if !inst.mgr.Has(key) {
			continue
		}
		v, err := inst.mgr.Coerce(key, raw)
		if err != nil {
			return gerr.Wrap("instance.Recapture", inst.Logdir, err)
		}
		captured[key] = v
	}

	return inst.persistCaptured(captured)
}

func (inst *Instance) persistCaptured(captured map[string]any) error {
	raws := make(map[string]json.RawMessage, len(captured))
	for name, v := range captured {
		if !inst.mgr.Has(name) {
			continue
		}
		raw, err := inst.mgr.EncodeJSON(name, v)
		if err != nil {
			return gerr.Wrap("instance.persistCaptured", name, err)
		}
		raws[name] = raw
	}
	data, err := json.Marshal(raws)
	if err != nil {
		return gerr.Wrap("instance.persistCaptured", inst.Logdir, err)
	}
	if err := inst.book.WriteAll(capturedFile, data); err != nil {
		return gerr.Wrap("instance.persistCaptured", inst.Logdir, err)
	}
	return nil
}

// ReadCaptured loads a previously persisted captured.json.
func (inst *Instance) ReadCaptured() (map[string]any, error) {
	r, err := inst.book.OpenRead(capturedFile)
	if err != nil {
		return nil, gerr.Wrap("instance.ReadCaptured", inst.Logdir, err)
	}
	defer r.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return DecodeContext(inst.mgr, buf)
}

func copyBookkeeping(src, dst workspace.Workspace) error {
	files, err := src.Files()
	if err != nil {
		return err
	}
	for _, p := range files {
		r, err := src.OpenRead(p)
		if err != nil {
			return err
		}
		writeErr := dst.WriteAll(p, r)
		r.Close()
		if writeErr != nil {
			return writeErr
		}
	}
	return nil
}

func readEventLog(ws workspace.Workspace) (map[string]string, error) {
	out := make(map[string]string)
	if !ws.Exists(eventLogFile) {
		return out, nil
	}
	r, err := ws.OpenRead(eventLogFile)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out, scanner.Err()
}
