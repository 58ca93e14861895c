//go:build windows

package runner

import "os/exec"

// setProcessGroup relies on the default cancellation, which kills only the
// direct child.
func setProcessGroup(cmd *exec.Cmd) {}
