package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DropsTimeOfDay(t *testing.T) {
	morning := time.Date(2024, time.March, 3, 0, 0, 1, 0, time.UTC)
	night := time.Date(2024, time.March, 3, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, Normalize(morning, time.UTC), Normalize(night, time.UTC))
	assert.Equal(t, "2024-03-03", Normalize(night, time.UTC).String())
}

func TestNormalize_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	instant := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-01", Normalize(instant, time.UTC).String())
	assert.Equal(t, "2024-01-02", Normalize(instant, tokyo).String())
}

func TestDate_InAndAddDays(t *testing.T) {
	d := DateOf(2023, time.December, 31)
	assert.Equal(t, "2024-01-01", d.AddDays(1).String())

	loc := time.FixedZone("X", -5*3600)
	midnight := d.In(loc)
	assert.Equal(t, 0, midnight.Hour())
	assert.Equal(t, d, Normalize(midnight, loc))
}

func TestDate_BeforeEpoch(t *testing.T) {
	d := DateOf(1969, time.December, 31)
	assert.Equal(t, Date(-1), d)
	assert.Equal(t, "1969-12-31", d.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, DateOf(2024, time.January, 7), d)

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err)
}

func TestYearsBack_LeapDay(t *testing.T) {
	r := YearsBack(DateOf(2024, time.February, 29), 5)
	assert.Equal(t, "2019-03-01", r.Min.String())
	assert.Equal(t, "2024-02-29", r.Max.String())
}

func TestRange_Clamp(t *testing.T) {
	r := Range{Min: DateOf(2020, 1, 1), Max: DateOf(2020, 1, 10)}

	assert.Equal(t, r.Min, r.Clamp(DateOf(2019, 6, 1)))
	assert.Equal(t, r.Max, r.Clamp(DateOf(2021, 6, 1)))
	assert.Equal(t, DateOf(2020, 1, 5), r.Clamp(DateOf(2020, 1, 5)))
	assert.Equal(t, 10, r.Days())
}
