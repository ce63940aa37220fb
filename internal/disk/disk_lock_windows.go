//go:build windows

package disk

import "os"

// lockFile is a no-op on windows; LockFileEx would be the equivalent of
// the unix flock, but this teaching engine doesn't need cross-platform
// exclusivity to demonstrate the storage core.
func lockFile(f *os.File) error {
	return nil
}
