package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCompatibility(t *testing.T) {
	tests := []struct {
		name      string
		component Component
		platform  string
		wantErrs  int
		contains  string
	}{
		{
			name:      "no constraints",
			component: Component{ID: "a", Version: "1.0.0"},
			platform:  "1.4.0",
		},
		{
			name:      "min satisfied",
			component: Component{ID: "a", MinPlatform: "1.2.0"},
			platform:  "1.4.0",
		},
		{
			name:      "min not satisfied",
			component: Component{ID: "a", MinPlatform: "2.0.0"},
			platform:  "1.4.0",
			wantErrs:  1,
			contains:  "requires platform 2.0.0 or newer",
		},
		{
			name:      "max exceeded",
			component: Component{ID: "a", MaxPlatform: "v1.3.9"},
			platform:  "v1.4.0",
			wantErrs:  1,
			contains:  "supports platform up to",
		},
		{
			name:      "invalid version",
			component: Component{ID: "a", Version: "one"},
			platform:  "1.4.0",
			wantErrs:  1,
			contains:  "not a valid semantic version",
		},
		{
			name:      "invalid min platform",
			component: Component{ID: "a", MinPlatform: "soon"},
			platform:  "1.4.0",
			wantErrs:  1,
			contains:  "min_platform",
		},
		{
			name:      "missing dependency",
			component: Component{ID: "a", Requires: []string{"b"}},
			platform:  "1.4.0",
			wantErrs:  1,
			contains:  `requires component "b"`,
		},
		{
			name:      "several problems",
			component: Component{ID: "a", MinPlatform: "9.0.0", Requires: []string{"b", "c"}},
			platform:  "1.4.0",
			wantErrs:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(tt.component))

			findings := CheckCompatibility(r, tt.platform)
			errs := findings[tt.component.ID]
			assert.Len(t, errs, tt.wantErrs)
			if tt.contains != "" {
				require.NotEmpty(t, errs)
				assert.Contains(t, errs[0], tt.contains)
			}
		})
	}
}

func TestCheckCompatibilityDependencyPresent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Component{ID: "base", Core: true}))
	require.NoError(t, r.Register(Component{ID: "stats", Requires: []string{"base"}}))

	assert.Empty(t, CheckCompatibility(r, "1.0.0"))
}

func TestApplyCompatibilityRecordsErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Component{ID: "old", MaxPlatform: "0.9.0"}))
	require.NoError(t, r.Register(Component{ID: "fine"}))

	findings, err := ApplyCompatibility(r, "1.0.0")
	require.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.True(t, r.HasCompatibilityErrors("old"))
	assert.False(t, r.HasCompatibilityErrors("fine"))

	// A second pass must not clear or overwrite recorded errors.
	_, err = ApplyCompatibility(r, "1.0.0")
	assert.ErrorIs(t, err, ErrCompatibilityFrozen)
	assert.True(t, r.HasCompatibilityErrors("old"))
}
