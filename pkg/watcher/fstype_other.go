//go:build !linux

package watcher

// Only Linux is probed; elsewhere fsnotify is trusted.
func statFilesystemType(string) FilesystemType {
	return FSTypeLocal
}
