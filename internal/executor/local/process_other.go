//go:build !unix

package local

import "os/exec"

// Without process groups the default Cancel kills only the direct child.
func configureProcessGroup(*exec.Cmd) {}

func killProcessGroup(*exec.Cmd) error { return nil }
