//go:build windows

package preflight

import "os"

// canWrite probes writability by creating and removing a temp file. Windows
// ACLs make a mode-bit check meaningless.
func canWrite(path string) error {
	f, err := os.CreateTemp(path, ".netmirror-preflight-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
