package component

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const manifestFilename = "manifest.yaml"

// Discover scans a single plugins directory for script component manifests.
func Discover(pluginsDir string, logger func(level, msg string, args ...any)) ([]*Discovered, error) {
	return DiscoverMany([]string{pluginsDir}, logger)
}

// DiscoverMany scans plugin roots for manifest.yaml files and validates them.
// Roots are processed in input order; duplicate ids keep the first discovered
// component. Invalid manifests are logged and skipped.
func DiscoverMany(pluginRoots []string, logger func(level, msg string, args ...any)) ([]*Discovered, error) {
	if logger == nil {
		logger = func(level, msg string, args ...any) {}
	}

	absRoots := make([]string, 0, len(pluginRoots))
	seenRoots := make(map[string]struct{}, len(pluginRoots))
	for _, root := range pluginRoots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plugin root %q: %w", root, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("plugin root does not exist: %s", absRoot)
			}
			return nil, fmt.Errorf("failed to stat plugin root %s: %w", absRoot, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("plugin root is not a directory: %s", absRoot)
		}
		if _, ok := seenRoots[absRoot]; ok {
			continue
		}
		seenRoots[absRoot] = struct{}{}
		absRoots = append(absRoots, absRoot)
	}

	var out []*Discovered
	byID := make(map[string]*Discovered)
	for _, root := range absRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			componentPath := filepath.Dir(path)
			found, err := loadManifest(componentPath, root)
			if err != nil {
				logger("warn", "failed to load component manifest", "root", root, "path", componentPath, "error", err.Error())
				return nil
			}

			if existing, ok := byID[found.Manifest.ID]; ok {
				logger(
					"warn",
					"duplicate component ignored (keeping first discovered)",
					"component_id", found.Manifest.ID,
					"ignored_path", found.Path,
					"kept_path", existing.Path,
				)
				return nil
			}
			byID[found.Manifest.ID] = found
			out = append(out, found)

			logger("info", "discovered component", "component_id", found.Manifest.ID, "path", found.Path, "version", found.Manifest.Version)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin root %s: %w", root, err)
		}
	}

	return out, nil
}

// loadManifest reads and validates a single component directory.
func loadManifest(componentPath, root string) (*Discovered, error) {
	data, err := os.ReadFile(filepath.Join(componentPath, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	if err := validateManifest(&manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	entrypointPath := filepath.Join(componentPath, manifest.Entrypoint)
	if err := validateTrust(entrypointPath, componentPath, root); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	return &Discovered{
		Manifest:   manifest,
		Path:       componentPath,
		Entrypoint: entrypointPath,
	}, nil
}

// validateTrust checks that the entrypoint stays inside the component
// directory and that the directory is not world-writable.
func validateTrust(entrypointPath, componentPath, root string) error {
	resolvedEntrypoint, err := filepath.EvalSymlinks(entrypointPath)
	if err != nil {
		return fmt.Errorf("failed to resolve entrypoint symlink: %w", err)
	}

	resolvedComponentPath, err := filepath.EvalSymlinks(componentPath)
	if err != nil {
		return fmt.Errorf("failed to resolve component path symlink: %w", err)
	}

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve plugin root symlink %s: %w", root, err)
	}
	if !strings.HasPrefix(resolvedEntrypoint, resolvedRoot+string(os.PathSeparator)) {
		return fmt.Errorf("entrypoint %s is not under plugin root %s", resolvedEntrypoint, resolvedRoot)
	}

	if !strings.HasPrefix(resolvedEntrypoint, resolvedComponentPath+string(os.PathSeparator)) {
		return fmt.Errorf("entrypoint %s is not under component directory %s", resolvedEntrypoint, resolvedComponentPath)
	}

	info, err := os.Stat(resolvedEntrypoint)
	if err != nil {
		return fmt.Errorf("entrypoint not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("entrypoint is a directory: %s", resolvedEntrypoint)
	}

	dirInfo, err := os.Stat(resolvedComponentPath)
	if err != nil {
		return fmt.Errorf("component directory not found: %w", err)
	}
	if dirInfo.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("component directory is world-writable: %s", resolvedComponentPath)
	}

	return nil
}
