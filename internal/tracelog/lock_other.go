//go:build !unix

package tracelog

import "os"

func lockFile(*os.File) error {
	return ErrLockUnsupported
}

func unlockFile(*os.File) {}
