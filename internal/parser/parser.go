package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"obd-telemetry-log/internal/models"
)

// Parser handles parsing of readings files
type Parser struct {
	format string
}

// NewParser creates a new parser with the specified format
func NewParser(format string) *Parser {
	return &Parser{format: format}
}

// ParseFile parses a readings file
func (p *Parser) ParseFile(filename string) ([]models.Sample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses readings from r in the parser's format
func (p *Parser) Parse(r io.Reader) ([]models.Sample, error) {
	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(r)
	case "json":
		return p.parseJSON(r)
	case "log":
		return p.parseLog(r)
	default:
		return nil, errors.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV formatted readings
func (p *Parser) parseCSV(r io.Reader) ([]models.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[normalizeColumn(h)] = i
	}

	var results []models.Sample
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return results, errors.Wrapf(err, "error at line %d", lineNum)
		}

		s, err := recordToSample(record, indices)
		if err != nil {
			log.WithField("line", lineNum).Warn(err)
			continue
		}
		results = append(results, s)
	}

	return results, nil
}

// normalizeColumn maps "Fuel Rate", "fuel_rate" and "fuelRate" to the same key
func normalizeColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", "")
	return strings.ReplaceAll(h, " ", "")
}

// recordToSample converts a CSV record to a Sample. Empty cells stay absent.
func recordToSample(record []string, indices map[string]int) (models.Sample, error) {
	var s models.Sample

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	if ts := getValue("time"); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return s, errors.Wrap(err, "invalid time")
		}
		s.Time = &t
	}

	var err error
	fields := []struct {
		key string
		dst **float64
	}{
		{"latitude", &s.Latitude},
		{"longitude", &s.Longitude},
		{"elevation", &s.Elevation},
		{"fuelrate", &s.FuelRate},
		{"fuellevel", &s.FuelLevel},
		{"engineload", &s.EngineLoad},
		{"tankcapacity", &s.TankCapacity},
		{"odometerreading", &s.OdometerReading},
	}
	for _, f := range fields {
		if *f.dst, err = optionalFloat(getValue(f.key)); err != nil {
			return s, errors.Wrapf(err, "invalid %s", f.key)
		}
	}
	if s.RPM, err = optionalInt(getValue("rpm")); err != nil {
		return s, errors.Wrap(err, "invalid rpm")
	}
	if s.WaterTemp, err = optionalInt(getValue("watertemp")); err != nil {
		return s, errors.Wrap(err, "invalid waterTemp")
	}

	return s, nil
}

// jsonSample mirrors the stored DataPoint encoding
type jsonSample struct {
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	Elevation       *float64   `json:"elevation"`
	Time            *time.Time `json:"time"`
	RPM             *int       `json:"rpm"`
	FuelRate        *float64   `json:"fuelRate"`
	WaterTemp       *int       `json:"waterTemp"`
	FuelLevel       *float64   `json:"fuelLevel"`
	EngineLoad      *float64   `json:"engineLoad"`
	TankCapacity    *float64   `json:"tankCapacity"`
	OdometerReading *float64   `json:"odometerReading"`
}

func (j jsonSample) sample() models.Sample {
	return models.Sample{
		Latitude:        j.Latitude,
		Longitude:       j.Longitude,
		Elevation:       j.Elevation,
		Time:            j.Time,
		RPM:             j.RPM,
		FuelRate:        j.FuelRate,
		WaterTemp:       j.WaterTemp,
		FuelLevel:       j.FuelLevel,
		EngineLoad:      j.EngineLoad,
		TankCapacity:    j.TankCapacity,
		OdometerReading: j.OdometerReading,
	}
}

// parseJSON parses a JSON array of readings, falling back to JSON lines
func (p *Parser) parseJSON(r io.Reader) ([]models.Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}

	var arr []jsonSample
	if err := json.Unmarshal(data, &arr); err == nil {
		results := make([]models.Sample, 0, len(arr))
		for _, j := range arr {
			results = append(results, j.sample())
		}
		return results, nil
	}

	return p.parseJSONLines(bytes.NewReader(data))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.Sample, error) {
	var results []models.Sample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		line = strings.TrimSuffix(line, ",")

		var j jsonSample
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			log.WithField("line", lineNum).WithError(err).Warn("skipping invalid JSON line")
			continue
		}
		results = append(results, j.sample())
	}

	return results, scanner.Err()
}

// parseLog parses pipe-delimited lines:
// time|lat,lon|elevation|rpm|fuelRate|waterTemp|fuelLevel|engineLoad|odometer
func (p *Parser) parseLog(r io.Reader) ([]models.Sample, error) {
	var results []models.Sample
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 9 {
			log.WithField("line", lineNum).Warn("insufficient fields")
			continue
		}

		s, err := logPartsToSample(parts)
		if err != nil {
			log.WithField("line", lineNum).Warn(err)
			continue
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}

func logPartsToSample(parts []string) (models.Sample, error) {
	var s models.Sample
	var err error

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if parts[0] != "" {
		t, err := parseTimestamp(parts[0])
		if err != nil {
			return s, errors.Wrap(err, "invalid time")
		}
		s.Time = &t
	}

	if coords := strings.Split(parts[1], ","); len(coords) == 2 {
		if s.Latitude, err = optionalFloat(strings.TrimSpace(coords[0])); err != nil {
			return s, errors.Wrap(err, "invalid latitude")
		}
		if s.Longitude, err = optionalFloat(strings.TrimSpace(coords[1])); err != nil {
			return s, errors.Wrap(err, "invalid longitude")
		}
	}

	if s.Elevation, err = optionalFloat(parts[2]); err != nil {
		return s, errors.Wrap(err, "invalid elevation")
	}
	if s.RPM, err = optionalInt(parts[3]); err != nil {
		return s, errors.Wrap(err, "invalid rpm")
	}
	if s.FuelRate, err = optionalFloat(parts[4]); err != nil {
		return s, errors.Wrap(err, "invalid fuel rate")
	}
	if s.WaterTemp, err = optionalInt(parts[5]); err != nil {
		return s, errors.Wrap(err, "invalid water temp")
	}
	if s.FuelLevel, err = optionalFloat(parts[6]); err != nil {
		return s, errors.Wrap(err, "invalid fuel level")
	}
	if s.EngineLoad, err = optionalFloat(parts[7]); err != nil {
		return s, errors.Wrap(err, "invalid engine load")
	}
	if s.OdometerReading, err = optionalFloat(parts[8]); err != nil {
		return s, errors.Wrap(err, "invalid odometer")
	}
	return s, nil
}

func optionalFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optionalInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// parseTimestamp tries multiple timestamp formats
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	// Try Unix timestamp
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0), nil
	}

	return time.Time{}, errors.Errorf("unable to parse timestamp: %s", s)
}

// SortByTime orders samples oldest first. Samples without a time go last,
// keeping their relative order.
func SortByTime(samples []models.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].Time, samples[j].Time
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})
}

// ValidateSample reports out-of-range values in a sample
func ValidateSample(s *models.Sample) []string {
	var problems []string

	if s.Time == nil {
		problems = append(problems, "time is required")
	}
	if s.Latitude != nil && (*s.Latitude < -90 || *s.Latitude > 90) {
		problems = append(problems, "latitude must be between -90 and 90")
	}
	if s.Longitude != nil && (*s.Longitude < -180 || *s.Longitude > 180) {
		problems = append(problems, "longitude must be between -180 and 180")
	}
	if s.FuelLevel != nil && (*s.FuelLevel < 0 || *s.FuelLevel > 100) {
		problems = append(problems, "fuelLevel must be between 0 and 100")
	}
	if s.EngineLoad != nil && (*s.EngineLoad < 0 || *s.EngineLoad > 100) {
		problems = append(problems, "engineLoad must be between 0 and 100")
	}
	if s.RPM != nil && *s.RPM < 0 {
		problems = append(problems, "rpm cannot be negative")
	}
	if s.FuelRate != nil && *s.FuelRate < 0 {
		problems = append(problems, "fuelRate cannot be negative")
	}
	if s.TankCapacity != nil && *s.TankCapacity <= 0 {
		problems = append(problems, "tankCapacity must be positive")
	}

	return problems
}
