package exec

import (
	"fmt"
	"io"
	"os"
)

// FileCopier copies a local file to a local destination, overwriting
// whatever is already there.
type FileCopier interface {
	Copy(src, dst string) error
}

// OSCopier implements FileCopier against the real filesystem.
// The destination inherits the source's permission bits, which matters
// for private keys (0600).
type OSCopier struct{}

// NewOSCopier creates a FileCopier backed by the OS.
func NewOSCopier() OSCopier {
	return OSCopier{}
}

// Copy copies src to dst, truncating dst if it exists.
func (OSCopier) Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// An existing destination keeps its old mode; force the source's.
	return os.Chmod(dst, info.Mode().Perm())
}
