package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiskMode(t *testing.T) {
	t.Run("accepts_any_casing_and_padding", func(t *testing.T) {
		cases := []struct {
			raw  string
			want RiskMode
		}{
			{"DEFENSIVE", ModeDefensive},
			{"defensive", ModeDefensive},
			{" Defensive ", ModeDefensive},
			{"NORMAL", ModeNormal},
			{"normal", ModeNormal},
			{"AGGRESSIVE", ModeAggressive},
			{"aggressive", ModeAggressive},
		}

		for _, tc := range cases {
			mode, err := ParseRiskMode(tc.raw)
			require.NoError(t, err, "raw %q", tc.raw)
			assert.Equal(t, tc.want, mode)
		}
	})

	t.Run("rejects_unknown_modes", func(t *testing.T) {
		for _, raw := range []string{"bold", "", "defensiveish"} {
			_, err := ParseRiskMode(raw)
			require.Error(t, err, "raw %q", raw)
			assert.Contains(t, err.Error(), "unknown risk mode")
		}
	})
}
