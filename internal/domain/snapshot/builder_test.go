package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrozenInputsID_OrderInsensitive(t *testing.T) {
	a := []FrozenInput{
		{IndicatorID: "reserves", SeriesID: "WRESBAL", VintageID: "v1", ObservationDate: "2025-06-10"},
		{IndicatorID: "tga", SeriesID: "WTREGEN", VintageID: "v2", ObservationDate: "2025-06-11"},
	}
	b := []FrozenInput{a[1], a[0]}

	assert.Equal(t, FrozenInputsID(a), FrozenInputsID(b))
}

func TestFrozenInputsID_SensitiveToVintage(t *testing.T) {
	a := []FrozenInput{{IndicatorID: "tga", SeriesID: "WTREGEN", VintageID: "v1", ObservationDate: "2025-06-11"}}
	b := []FrozenInput{{IndicatorID: "tga", SeriesID: "WTREGEN", VintageID: "v2", ObservationDate: "2025-06-11"}}

	assert.NotEqual(t, FrozenInputsID(a), FrozenInputsID(b),
		"a revised vintage is a different input set")
}

func TestBuild_ByteIdenticalOnReplay(t *testing.T) {
	in := BuildInputs{
		AsOf:    time.Date(2025, time.June, 12, 15, 0, 0, 0, time.UTC),
		Horizon: "1w",
		Regime:  Regime{Label: LabelNeutral, Tilt: TiltFlat, MaxScore: 2},
		Rows: []EvidenceRow{
			{IndicatorID: "tga", Status: StatusPositive},
			{IndicatorID: "reserves", Status: StatusNeutral},
		},
		Picks: []RouterPick{{IndicatorID: "tga"}},
		FrozenInputs: []FrozenInput{
			{IndicatorID: "tga", SeriesID: "WTREGEN", VintageID: "v1", ObservationDate: "2025-06-11"},
		},
	}

	b := NewBuilder()
	first, err := json.Marshal(b.Build(in))
	require.NoError(t, err)
	second, err := json.Marshal(b.Build(in))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_DefaultModeEvidenceFollowsPickOrder(t *testing.T) {
	in := BuildInputs{
		Horizon: "1w",
		Rows: []EvidenceRow{
			{IndicatorID: "a", Status: StatusPositive},
			{IndicatorID: "b", Status: StatusNegative},
			{IndicatorID: "c", Status: StatusNeutral},
		},
		Picks: []RouterPick{{IndicatorID: "c"}, {IndicatorID: "a"}},
	}

	snap := NewBuilder().Build(in)
	require.Len(t, snap.Evidence, 2)
	assert.Equal(t, "c", snap.Evidence[0].IndicatorID)
	assert.Equal(t, "a", snap.Evidence[1].IndicatorID)
}

func TestBuild_FullModeIncludesAllAvailableRows(t *testing.T) {
	in := BuildInputs{
		Horizon: "1w",
		Rows: []EvidenceRow{
			{IndicatorID: "b", Status: StatusNegative},
			{IndicatorID: "a", Status: StatusPositive},
			{IndicatorID: "gone", Status: StatusNotAvailable},
		},
		Picks: []RouterPick{{IndicatorID: "a"}},
		Full:  true,
	}

	snap := NewBuilder().Build(in)
	require.Len(t, snap.Evidence, 2, "n/a rows stay out even in full mode")
	assert.Equal(t, "a", snap.Evidence[0].IndicatorID)
	assert.Equal(t, "b", snap.Evidence[1].IndicatorID)
}
