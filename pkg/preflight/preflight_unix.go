//go:build !windows

package preflight

import "golang.org/x/sys/unix"

// canWrite asks the kernel directly whether the directory is writable for
// the effective user.
func canWrite(path string) error {
	return unix.Access(path, unix.W_OK)
}
