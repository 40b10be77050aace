//go:build !windows

// Package fileutil writes gcg's private state: the REPL history, the
// sidecar cache and the home directory. Owner-only modes are honoured by
// the file mode on Unix and by a DACL on Windows.
package fileutil

import "os"

// SecureWriteFile writes data to path with perm.
func SecureWriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// SecureMkdirAll creates path and any missing parents with perm.
func SecureMkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
