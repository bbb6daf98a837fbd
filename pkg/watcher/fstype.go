package watcher

import (
	"os"
	"path/filepath"
)

// FilesystemType is a coarse classification of the filesystem backing a path.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

// Swapped in tests.
var detectFilesystemTypeFunc = DetectFilesystemType

// DetectFilesystemType classifies the filesystem holding path. A path that
// does not exist yet is classified by its nearest existing parent.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return FSTypeUnknown
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return statFilesystemType(abs)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return FSTypeUnknown
		}
		abs = parent
	}
}

// isRemoteFilesystem reports filesystems where inotify misses writes made
// by other hosts.
func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS:
		return true
	default:
		return false
	}
}
