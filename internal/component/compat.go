package component

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// CheckCompatibility runs the compatibility pass over every registered
// component and returns the errors found per component id. Components without
// errors are absent from the result.
func CheckCompatibility(r *Registry, platformVersion string) map[string][]string {
	platform := canonicalVersion(platformVersion)
	out := make(map[string][]string)

	for _, c := range r.All() {
		var errs []string

		if c.Version != "" && !semver.IsValid(canonicalVersion(c.Version)) {
			errs = append(errs, fmt.Sprintf("version %q is not a valid semantic version", c.Version))
		}

		if c.MinPlatform != "" {
			lo := canonicalVersion(c.MinPlatform)
			switch {
			case !semver.IsValid(lo):
				errs = append(errs, fmt.Sprintf("min_platform %q is not a valid semantic version", c.MinPlatform))
			case semver.IsValid(platform) && semver.Compare(platform, lo) < 0:
				errs = append(errs, fmt.Sprintf("requires platform %s or newer (running %s)", c.MinPlatform, platformVersion))
			}
		}

		if c.MaxPlatform != "" {
			hi := canonicalVersion(c.MaxPlatform)
			switch {
			case !semver.IsValid(hi):
				errs = append(errs, fmt.Sprintf("max_platform %q is not a valid semantic version", c.MaxPlatform))
			case semver.IsValid(platform) && semver.Compare(platform, hi) > 0:
				errs = append(errs, fmt.Sprintf("supports platform up to %s (running %s)", c.MaxPlatform, platformVersion))
			}
		}

		for _, dep := range c.Requires {
			if !r.Has(dep) {
				errs = append(errs, fmt.Sprintf("requires component %q which is not installed", dep))
			}
		}

		if len(errs) > 0 {
			out[c.ID] = errs
		}
	}
	return out
}

// ApplyCompatibility runs CheckCompatibility and records the findings on the
// registry. It returns the findings for reporting.
func ApplyCompatibility(r *Registry, platformVersion string) (map[string][]string, error) {
	findings := CheckCompatibility(r, platformVersion)
	for id, errs := range findings {
		if err := r.SetCompatibilityErrors(id, errs); err != nil {
			return findings, fmt.Errorf("record compatibility errors for %q: %w", id, err)
		}
	}
	return findings, nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
