package script

import (
	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/workspace"
)

// EventLog is the append-only key=value sink backing grevling.txt:
// g_started, g_finished, g_success and g_walltime_<name> records.
type EventLog interface {
	Append(key, value string) error
}

// WorkspaceEventLog appends "key=value\n" lines to a single file within
// a workspace, matching the on-disk grevling.txt contract.
type WorkspaceEventLog struct {
	ws   workspace.Workspace
	path string
}

// NewWorkspaceEventLog constructs an EventLog writing to path within ws
// (conventionally "grevling.txt").
func NewWorkspaceEventLog(ws workspace.Workspace, path string) *WorkspaceEventLog {
	return &WorkspaceEventLog{ws: ws, path: path}
}

func (l *WorkspaceEventLog) Append(key, value string) error {
	w, err := l.ws.OpenWrite(l.path, true)
	if err != nil {
		return gerr.Wrap("script.EventLog.Append", key, err)
	}
	defer w.Close()
	if _, err := w.Write([]byte(key + "=" + value + "\n")); err != nil {
		return gerr.Wrap("script.EventLog.Append", key, err)
	}
	return nil
}

var _ EventLog = (*WorkspaceEventLog)(nil)
