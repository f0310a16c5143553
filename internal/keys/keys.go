// Package keys provisions the SSH keypair a deployment uses to reach
// its machines.
//
// Provisioning generates (or reuses) a local RSA keypair under the
// ~/.appscale directory, then installs it on every machine in the
// layout so later deployment steps can log in as root without a
// password. All shelling out goes through an exec.Runner, so the whole
// flow is testable without touching real machines.
package keys

import (
	"os"
	"path/filepath"

	"github.com/altoplano/appscale-tools/internal/errors"
)

const (
	// DirName is the dot directory under the user's home where
	// deployment state lives.
	DirName = ".appscale"

	// KeyName is the base file name of the deployment keypair, and the
	// comment ssh-keygen stamps on the public key.
	KeyName = "appscale"
)

// Paths holds the local file locations of the deployment keypair.
type Paths struct {
	// Private is the private key file.
	Private string
	// Public is the matching public key, Private + ".pub".
	Public string
	// Backup is where the old private key goes before reprovisioning,
	// Private + ".key".
	Backup string
}

// DefaultPaths returns the keypair paths under the user's home
// directory.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't find your home directory",
			"Set HOME and try again.")
	}
	return PathsIn(filepath.Join(home, DirName)), nil
}

// PathsIn returns the keypair paths inside the given directory.
func PathsIn(dir string) Paths {
	base := filepath.Join(dir, KeyName)
	return Paths{
		Private: base,
		Public:  base + ".pub",
		Backup:  base + ".key",
	}
}
