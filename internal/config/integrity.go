package config

import (
	"fmt"
	"path/filepath"
)

// IntegrityResult holds the outcome of integrity verification.
type IntegrityResult struct {
	Passed   bool
	Warnings []string
	Errors   []string
}

// VerifyIntegrity reports the checksum status of every file in the include
// tree rooted at configPath without failing fast. A directory without a
// manifest is a warning; a missing entry or a mismatch is an error.
func VerifyIntegrity(configPath string) (*IntegrityResult, error) {
	paths, err := DiscoverAllConfigFiles(configPath)
	if err != nil {
		return nil, err
	}

	result := &IntegrityResult{Passed: true}
	manifests := make(map[string]*ChecksumManifest)
	for _, path := range paths {
		dir := filepath.Dir(path)
		manifest, seen := manifests[dir]
		if !seen {
			manifest, err = LoadChecksums(dir)
			if err != nil {
				manifest = nil
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("no %s manifest in %s; run 'plugbus config lock' to enable integrity verification", ChecksumFile, dir))
			}
			manifests[dir] = manifest
		}
		if manifest == nil {
			continue
		}

		expected, ok := manifest.Hashes[filepath.Base(path)]
		if !ok {
			result.Passed = false
			result.Errors = append(result.Errors, fmt.Sprintf("file %s not in %s manifest", path, ChecksumFile))
			continue
		}
		if err := VerifyFileHash(path, expected); err != nil {
			result.Passed = false
			result.Errors = append(result.Errors, err.Error())
		}
	}
	return result, nil
}
