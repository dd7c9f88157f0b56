package timestamp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Time
	}{
		{"2026-02-21T01:02:03", time.Date(2026, 2, 21, 1, 2, 3, 0, time.UTC)},
		{"2026-02-21T01:02:03Z", time.Date(2026, 2, 21, 1, 2, 3, 0, time.UTC)},
		{"2026-02-21T01:02:03.5Z", time.Date(2026, 2, 21, 1, 2, 3, 500000000, time.UTC)},
		{"2026-02-21T01:02:03-07:00", time.Date(2026, 2, 21, 8, 2, 3, 0, time.UTC)},
		{"1771635723", time.Unix(1771635723, 0).UTC()},
	}
	for _, tt := range tests {
		parsed, err := Parse(tt.value)
		require.NoError(t, err, tt.value)
		assert.True(t, tt.expected.Equal(parsed.Time()), "%s parsed as %s", tt.value, parsed.Time())
	}
}

func TestParseFractionalEpoch(t *testing.T) {
	parsed, err := Parse("1771635723.25")
	require.NoError(t, err)
	assert.Equal(t, int64(1771635723), parsed.Time().Unix())
	assert.Equal(t, 250000000, parsed.Time().Nanosecond())
}

func TestParseRejectsUnknownLayout(t *testing.T) {
	_, err := Parse("yesterday")
	assert.Error(t, err)

	_, err = Parse("2026-02-21")
	assert.Error(t, err)
}

func TestUnmarshalJSON(t *testing.T) {
	var body struct {
		At    Timestamp `json:"at"`
		Epoch Timestamp `json:"epoch"`
		Empty Timestamp `json:"empty"`
	}
	err := json.Unmarshal([]byte(`{"at": "2026-02-21T01:02:03Z", "epoch": 1771635723, "empty": null}`), &body)
	require.NoError(t, err)

	assert.True(t, time.Date(2026, 2, 21, 1, 2, 3, 0, time.UTC).Equal(body.At.Time()))
	assert.Equal(t, int64(1771635723), body.Epoch.Time().Unix())
	assert.True(t, body.Empty.IsZero())
}

func TestMarshalJSON(t *testing.T) {
	ts := Timestamp(time.Date(2026, 2, 21, 1, 2, 3, 0, time.UTC))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-02-21T01:02:03Z"`, string(data))
}
