//go:build windows

package script

import "os/exec"

// setProcessGroup is a no-op on Windows; process groups are handled by
// the taskkill-style cleanup context.Context cancellation triggers via
// exec.CommandContext's built-in process termination.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup is a no-op on Windows.
func killProcessGroup(cmd *exec.Cmd) {}
