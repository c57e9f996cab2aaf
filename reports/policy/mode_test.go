package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectExecutionMode_Precedence(t *testing.T) {
	testCases := []struct {
		name       string
		params     Params
		expectReal bool
	}{
		{
			// Rule 1 beats everything, including privileged actors and
			// per-request force-real.
			name: "kill_switch_overrides_all",
			params: Params{
				Globals:         Globals{ForceSubstitute: true, ForceReal: true, AllowRealForSynthetic: true},
				PrivilegedActor: true,
				ForceReal:       true,
			},
			expectReal: false,
		},
		{
			// Rule 2: privileged actor wins over the synthetic marker.
			name: "privileged_actor_beats_synthetic_marker",
			params: Params{
				PrivilegedActor: true,
				Synthetic:       true,
			},
			expectReal: true,
		},
		{
			// Rule 3: per-request force-real wins over synthetic.
			name: "request_force_real_beats_synthetic_marker",
			params: Params{
				ForceReal: true,
				Synthetic: true,
			},
			expectReal: true,
		},
		{
			// Rule 4: synthetic routes to substitute even under global
			// force-real.
			name: "synthetic_marker_beats_global_force_real",
			params: Params{
				Globals:   Globals{ForceReal: true},
				Synthetic: true,
			},
			expectReal: false,
		},
		{
			// Rule 4 override: the synthetic escape hatch.
			name: "synthetic_allowed_real_when_override_set",
			params: Params{
				Globals:   Globals{AllowRealForSynthetic: true},
				Synthetic: true,
			},
			expectReal: true,
		},
		{
			// Rule 5.
			name: "global_force_real",
			params: Params{
				Globals: Globals{ForceReal: true},
			},
			expectReal: true,
		},
		{
			// Rule 6.
			name:       "default_is_real",
			params:     Params{},
			expectReal: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := SelectExecutionMode(tc.params)
			assert.Equal(t, tc.expectReal, d.UseRealPath)
			assert.Equal(t, !tc.expectReal, d.UseSubstitutePath)
			assert.NotEqual(t, d.UseRealPath, d.UseSubstitutePath, "exactly one path must be chosen")
		})
	}
}

func TestGlobalsFromEnv(t *testing.T) {
	t.Setenv("REPORTS_FORCE_SUBSTITUTE", "true")
	t.Setenv("REPORTS_FORCE_REAL", "0")
	t.Setenv("REPORTS_ALLOW_REAL_FOR_SYNTHETIC", "not-a-bool")

	g := GlobalsFromEnv()
	assert.True(t, g.ForceSubstitute)
	assert.False(t, g.ForceReal)
	assert.False(t, g.AllowRealForSynthetic)
}
