package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
- id: reserves
  name: Bank reserves
  category: core
  series: [WRESBAL]
  cadence: weekly
  directionality: higher_is_supportive
  scoring: statistical
  z_cutoff: 1.0
  trigger: "|z20| >= 1.0"
- id: sofr_iorb
  name: SOFR-IORB spread
  category: floor
  series: [SOFR, IORB]
  cadence: daily
  directionality: higher_is_draining
  scoring: threshold
  persistence: 3
  threshold:
    op: ">"
    value: 0
    spread_of: [SOFR, IORB]
  trigger: "spread > 0 bps persisting 3d"
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	spread, ok := reg.Get("sofr_iorb")
	require.True(t, ok)
	assert.Equal(t, ScoringThreshold, spread.Scoring)
	assert.Equal(t, 3, spread.Persistence)
	require.NotNil(t, spread.Threshold)
	assert.Equal(t, []string{"SOFR", "IORB"}, spread.Threshold.SpreadOf)
	assert.Equal(t, -1, spread.Directionality.Sign())
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("[]"))
	require.Error(t, err)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("{not: [valid"))
	require.Error(t, err)
}
