//go:build !linux

package process

import "syscall"

// isolatedProcAttr is here for all non-linux builds but does nothing and exists
// only to make builds work
func isolatedProcAttr() *syscall.SysProcAttr {
	return nil
}
