//go:build linux

package watcher

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// statfs(2) magic numbers, see linux/magic.h.
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517B
	cifsMagic      = 0xFF534D42
	smb2MagicNum   = 0xFE534D42
	fuseSuperMagic = 0x65735546
)

func statFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagic, smb2MagicNum:
		return FSTypeSMB
	case fuseSuperMagic:
		if fuseSubtype(path) == "sshfs" {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// fuseSubtype finds the mount covering path in /proc/self/mounts and
// returns the part after "fuse." in its type, e.g. "sshfs".
func fuseSubtype(path string) string {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	best, subtype := "", ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mnt, typ := fields[1], fields[2]
		if !strings.HasPrefix(path, mnt) || len(mnt) <= len(best) {
			continue
		}
		best = mnt
		subtype = strings.TrimPrefix(strings.TrimPrefix(typ, "fuse."), "fuse")
	}
	return subtype
}
