//go:build linux

package watcher

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Superblock magic numbers from statfs(2).
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517b
	cifsSuperMagic = 0xff534d42
	smb2SuperMagic = 0xfe534d42
	fuseSuperMagic = 0x65735546
)

func statfsType(dir string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return FSTypeUnknown
	}

	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsSuperMagic, smb2SuperMagic:
		return FSTypeSMB
	case fuseSuperMagic:
		// statfs cannot tell sshfs from other FUSE filesystems; the mount
		// table can.
		if isSSHFSMount(dir) {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// isSSHFSMount reports whether dir sits under an sshfs mount, best effort
// via /proc/self/mounts.
func isSSHFSMount(dir string) bool {
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return false
	}

	best := ""
	bestType := ""
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mount, fsType := fields[1], fields[2]
		if strings.HasPrefix(dir, mount) && len(mount) > len(best) {
			best = mount
			bestType = fsType
		}
	}
	return bestType == "fuse.sshfs"
}
