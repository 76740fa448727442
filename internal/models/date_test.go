package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesLocation(t *testing.T) {
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)
	hawaii := time.FixedZone("HST", -10*60*60)

	assert.Equal(t, "2024-03-01", Today(now, tokyo).String())
	assert.Equal(t, "2024-02-29", Today(now, hawaii).String())
	assert.Equal(t, "2024-03-01", Today(now, nil).String())
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-05-17")
	require.NoError(t, err)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-17"`, string(data))

	data, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var decoded Date
	require.NoError(t, json.Unmarshal([]byte(`"2023-12-31"`), &decoded))
	assert.Equal(t, "2023-12-31", decoded.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &decoded))
	assert.True(t, decoded.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"31/12/2023"`), &decoded))
}

func TestDate_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want string
	}{
		{"time", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), "2024-01-02"},
		{"string", "2024-01-02", "2024-01-02"},
		{"sqlite datetime text", "2024-01-02 00:00:00", "2024-01-02"},
		{"bytes", []byte("2024-01-02"), "2024-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}

	var d Date
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))
}

func TestDate_Value(t *testing.T) {
	d, err := ParseDate("2024-07-04")
	require.NoError(t, err)

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-04", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
