package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNetworkFilesystem is returned when the state database would live on a
// network share, where SQLite file locks are unreliable.
var ErrNetworkFilesystem = errors.New("state database is on a network filesystem")

var errDetectUnsupported = errors.New("filesystem detection is unsupported on this platform")

var networkFilesystems = []string{"afpfs", "cifs", "nfs", "smb2", "smbfs", "webdav"}

// detector returns the filesystem type name for an existing path.
type detector func(path string) (string, error)

// CheckStatePath verifies that the state database at path, or the directory
// it will be created in, sits on a local filesystem. Tenants, the report cache
// and time restrictions all share that file.
func CheckStatePath(path string) error {
	return checkStatePath(path, detectFilesystemType)
}

func checkStatePath(path string, detect detector) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}
	probe, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("state path %s: %w", path, err)
	}

	fsType, err := detect(probe)
	switch {
	case errors.Is(err, errDetectUnsupported):
		return nil
	case err != nil:
		return fmt.Errorf("state path %s: %w", path, err)
	}

	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("%w: %s is on %s; point state.path (or PLUGBUS_STATE_PATH) at a local disk",
			ErrNetworkFilesystem, path, fsType)
	}
	return nil
}

// existingAncestor walks up from path to the first entry that exists.
func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing parent directory")
		}
		p = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	return slices.Contains(networkFilesystems, strings.ToLower(strings.TrimSpace(fsType)))
}
