package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obd-telemetry-log/internal/models"
)

func TestParseCSV(t *testing.T) {
	input := `time,latitude,longitude,rpm,fuel_rate,Water Temp,fuelLevel,tank_capacity
2024-03-26T12:00:00Z,45.5,-73.6,2100,6.5,88,40,50
2024-03-26T12:00:01Z,,,2200,,,,
bogus,1,2,3,4,5,6,7
`
	samples, err := NewParser("csv").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	first := samples[0]
	assert.Equal(t, time.Date(2024, 3, 26, 12, 0, 0, 0, time.UTC), *first.Time)
	assert.Equal(t, 45.5, *first.Latitude)
	assert.Equal(t, -73.6, *first.Longitude)
	assert.Equal(t, 2100, *first.RPM)
	assert.Equal(t, 6.5, *first.FuelRate)
	assert.Equal(t, 88, *first.WaterTemp)
	assert.Equal(t, 40.0, *first.FuelLevel)
	assert.Equal(t, 50.0, *first.TankCapacity)
	assert.Nil(t, first.Elevation)

	second := samples[1]
	assert.Equal(t, 2200, *second.RPM)
	assert.Nil(t, second.Latitude)
	assert.Nil(t, second.FuelLevel)
	assert.Nil(t, second.WaterTemp)
}

func TestParseCSVBadNumberSkipsRow(t *testing.T) {
	input := "time,rpm\n2024-03-26T12:00:00Z,fast\n2024-03-26T12:00:01Z,900\n"
	samples, err := NewParser("csv").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 900, *samples[0].RPM)
}

func TestParseCSVReadErrorNamesLine(t *testing.T) {
	input := "time,rpm\n2024-03-26T12:00:00Z,800\n2024-03-26T12:00:01Z,8\"00\n"
	samples, err := NewParser("csv").Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error at line 3")
	assert.Len(t, samples, 1)
}

func TestParseJSONArray(t *testing.T) {
	input := `[{"time":"2024-03-26T12:00:00Z","rpm":800,"fuelLevel":55.5},{"waterTemp":70}]`
	samples, err := NewParser("json").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 800, *samples[0].RPM)
	assert.Equal(t, 55.5, *samples[0].FuelLevel)
	assert.Nil(t, samples[1].Time)
	assert.Equal(t, 70, *samples[1].WaterTemp)
}

func TestParseJSONLines(t *testing.T) {
	input := `{"time":"2024-03-26T12:00:00Z","rpm":800}
not json
{"time":"2024-03-26T12:00:05Z","rpm":900},
`
	samples, err := NewParser("json").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 900, *samples[1].RPM)
}

func TestParseLog(t *testing.T) {
	input := `# time|lat,lon|elevation|rpm|fuelRate|waterTemp|fuelLevel|engineLoad|odometer
1711454400|45.5,-73.6|30|2100|6.5|88|40|35|120345.5
2024-03-26 12:00:01||||||||
too|few
`
	samples, err := NewParser("log").Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	first := samples[0]
	assert.True(t, time.Unix(1711454400, 0).Equal(*first.Time))
	assert.Equal(t, 45.5, *first.Latitude)
	assert.Equal(t, 30.0, *first.Elevation)
	assert.Equal(t, 35.0, *first.EngineLoad)
	assert.Equal(t, 120345.5, *first.OdometerReading)

	second := samples[1]
	require.NotNil(t, second.Time)
	assert.Nil(t, second.Latitude)
	assert.Nil(t, second.RPM)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := NewParser("xml").Parse(strings.NewReader(""))
	assert.EqualError(t, err, "unsupported format: xml")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,rpm\n2024-03-26T12:00:00Z,700\n"), 0o644))

	samples, err := NewParser("csv").ParseFile(path)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	_, err = NewParser("csv").ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSortByTime(t *testing.T) {
	base := time.Date(2024, 3, 26, 12, 0, 0, 0, time.UTC)
	samples := []models.Sample{
		{Time: models.Time(base.Add(2 * time.Second))},
		{RPM: models.Int(1)},
		{Time: models.Time(base)},
		{Time: models.Time(base.Add(time.Second))},
	}
	SortByTime(samples)

	assert.Equal(t, base, *samples[0].Time)
	assert.Equal(t, base.Add(time.Second), *samples[1].Time)
	assert.Equal(t, base.Add(2*time.Second), *samples[2].Time)
	assert.Nil(t, samples[3].Time)
}

func TestValidateSample(t *testing.T) {
	ok := models.Sample{
		Time:      models.Time(time.Now()),
		Latitude:  models.Float(45),
		FuelLevel: models.Float(100),
	}
	assert.Empty(t, ValidateSample(&ok))

	bad := models.Sample{
		Latitude:     models.Float(91),
		Longitude:    models.Float(-181),
		FuelLevel:    models.Float(101),
		EngineLoad:   models.Float(-1),
		RPM:          models.Int(-5),
		FuelRate:     models.Float(-0.1),
		TankCapacity: models.Float(0),
	}
	problems := ValidateSample(&bad)
	assert.Len(t, problems, 8)
	assert.Contains(t, problems, "time is required")
	assert.Contains(t, problems, "fuelLevel must be between 0 and 100")
}
