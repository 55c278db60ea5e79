package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obd-telemetry-log/internal/models"
)

func TestPrintReadingsTable(t *testing.T) {
	rs := []models.DataPoint{
		models.NewDataPoint(models.Sample{
			Time:         models.Time(time.Date(2024, 3, 26, 12, 0, 0, 0, time.Local)),
			RPM:          models.Int(2100),
			FuelLevel:    models.Float(40),
			TankCapacity: models.Float(50),
			Latitude:     models.Float(45.5),
			Longitude:    models.Float(-73.6),
		}),
		models.NewDataPoint(models.Sample{}),
	}

	var buf bytes.Buffer
	require.NoError(t, printReadings(&buf, rs, "table"))
	out := buf.String()
	assert.Contains(t, out, "Found 2 readings")
	assert.Contains(t, out, "[2024-03-26 12:00:00] RPM: 2100")
	assert.Contains(t, out, "Fuel: 40.0% (20.0 L)")
	assert.Contains(t, out, "Pos: 45.500000,-73.600000")
	assert.Contains(t, out, "[-] RPM: - | Water: -")
}

func TestPrintReadingsJSON(t *testing.T) {
	rs := []models.DataPoint{models.NewDataPoint(models.Sample{RPM: models.Int(800)})}

	var buf bytes.Buffer
	require.NoError(t, printReadings(&buf, rs, "json"))

	var decoded []models.DataPoint
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 800, *decoded[0].RPM)
}

func TestPrintReadingsUnknownFormat(t *testing.T) {
	assert.Error(t, printReadings(&bytes.Buffer{}, nil, "xml"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatFloat(nil, "%.1f"))
	assert.Equal(t, "1.5 L", formatFloat(models.Float(1.5), "%.1f L"))
	assert.Equal(t, "-", formatInt(nil, "%d"))
	assert.Equal(t, "90°C", formatInt(models.Int(90), "%d°C"))
}

func TestCheckSimulateFlags(t *testing.T) {
	assert.NoError(t, checkSimulateFlags(time.Second, 0))
	assert.NoError(t, checkSimulateFlags(time.Millisecond, time.Minute))
	assert.EqualError(t, checkSimulateFlags(0, 0), "interval must be positive, got 0s")
	assert.Error(t, checkSimulateFlags(-time.Second, 0))
	assert.EqualError(t, checkSimulateFlags(time.Second, -time.Second), "duration must not be negative, got -1s")
}

func TestIngestSummary(t *testing.T) {
	assert.Equal(t, "Total: 5 readings recorded", ingestSummary(5, 0, 0))
	assert.Equal(t, "Total: 5 readings recorded, 2 rejected", ingestSummary(5, 2, 0))
	assert.Equal(t, "Total: 0 readings recorded, 1 files failed to parse", ingestSummary(0, 0, 1))
	assert.Equal(t, "Total: 3 readings recorded, 1 rejected, 2 files failed to parse", ingestSummary(3, 1, 2))
}
