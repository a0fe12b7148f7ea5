//go:build !linux

package watcher

// statfsType has no portable implementation off Linux; unknown types keep
// fsnotify active, which is the right default on macOS and Windows.
func statfsType(dir string) FilesystemType {
	return FSTypeUnknown
}
