package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"obd-telemetry-log/internal/config"
	"obd-telemetry-log/internal/db"
	"obd-telemetry-log/internal/entries"
	"obd-telemetry-log/internal/models"
	"obd-telemetry-log/internal/owner"
	"obd-telemetry-log/internal/parser"
	"obd-telemetry-log/internal/readings"
	"obd-telemetry-log/internal/simulate"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
	database   *db.Database

	// the main goroutine owns both logs
	mainThread *owner.Thread
)

func main() {
	mainThread = owner.Bind()

	rootCmd := &cobra.Command{
		Use:   "obdlog",
		Short: "OBD-II telemetry log - readings and tank entries",
		Long: `A CLI tool for recording OBD-II readings and manually logged tank entries
into a local SQLite store, and for inspecting the most recent five minutes
of readings.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")

	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(recentCmd())
	rootCmd.AddCommand(windowCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(tankCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	log.SetLevel(cfg.Level())
	return nil
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(cfg.DBPath)
	return err
}

func readingsLog() *readings.Log {
	return readings.New(database, cfg.ReadingsKey, mainThread)
}

func entriesLog() *entries.Log[models.TankInfo] {
	return entries.New[models.TankInfo](database, cfg.EntriesKey, mainThread)
}

// recordCmd records a single reading given on the command line
func recordCmd() *cobra.Command {
	var (
		at                              string
		lat, lon, elevation             float64
		fuelRate, fuelLevel, engineLoad float64
		odometer, tankCapacity          float64
		rpm, waterTemp                  int
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one reading; only the flags given are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			flags := cmd.Flags()
			optFloat := func(name string, v float64) *float64 {
				if flags.Changed(name) {
					return models.Float(v)
				}
				return nil
			}
			optInt := func(name string, v int) *int {
				if flags.Changed(name) {
					return models.Int(v)
				}
				return nil
			}

			s := models.Sample{
				Latitude:        optFloat("lat", lat),
				Longitude:       optFloat("lon", lon),
				Elevation:       optFloat("elevation", elevation),
				RPM:             optInt("rpm", rpm),
				FuelRate:        optFloat("fuel-rate", fuelRate),
				WaterTemp:       optInt("water-temp", waterTemp),
				FuelLevel:       optFloat("fuel-level", fuelLevel),
				EngineLoad:      optFloat("engine-load", engineLoad),
				OdometerReading: optFloat("odometer", odometer),
				TankCapacity:    optFloat("tank-capacity", tankCapacity),
			}
			if s.TankCapacity == nil {
				s.TankCapacity = cfg.TankCapacity
			}
			if at == "" {
				s.Time = models.Time(time.Now())
			} else {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return errors.Wrap(err, "invalid time format (use RFC3339)")
				}
				s.Time = &t
			}

			accepted, err := readingsLog().AddReading(models.NewDataPoint(s))
			if err != nil {
				return err
			}
			if !accepted {
				fmt.Println("Reading ignored: earlier than the most recent reading")
				return nil
			}
			fmt.Println("✓ Reading recorded")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&at, "time", "t", "", "Sample time (RFC3339, default now)")
	f.Float64Var(&lat, "lat", 0, "Latitude (degrees)")
	f.Float64Var(&lon, "lon", 0, "Longitude (degrees)")
	f.Float64Var(&elevation, "elevation", 0, "Elevation (m)")
	f.IntVar(&rpm, "rpm", 0, "Engine speed")
	f.Float64Var(&fuelRate, "fuel-rate", 0, "Fuel rate (L/h)")
	f.IntVar(&waterTemp, "water-temp", 0, "Water temperature (°C)")
	f.Float64Var(&fuelLevel, "fuel-level", 0, "Fuel level (%)")
	f.Float64Var(&engineLoad, "engine-load", 0, "Engine load (%)")
	f.Float64Var(&odometer, "odometer", 0, "Odometer reading (km)")
	f.Float64Var(&tankCapacity, "tank-capacity", 0, "Tank capacity (L, overrides config)")
	return cmd
}

// ingestCmd imports readings from files
func ingestCmd() *cobra.Command {
	var format string
	var validate bool

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest readings from files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			rl := readingsLog()
			p := parser.NewParser(format)
			totalAccepted := 0
			totalRejected := 0
			failedFiles := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				samples, err := p.ParseFile(file)
				if err != nil {
					log.WithField("file", file).WithError(err).Error("unable to parse file")
					failedFiles++
					continue
				}

				if validate {
					var valid []models.Sample
					for i := range samples {
						if problems := parser.ValidateSample(&samples[i]); len(problems) == 0 {
							valid = append(valid, samples[i])
						} else {
							log.WithField("file", file).WithField("problems", problems).Warn("skipping invalid reading")
							totalRejected++
						}
					}
					samples = valid
				}

				parser.SortByTime(samples)
				accepted := 0
				for _, s := range samples {
					if s.TankCapacity == nil {
						s.TankCapacity = cfg.TankCapacity
					}
					ok, err := rl.AddReading(models.NewDataPoint(s))
					if err != nil {
						return err
					}
					if ok {
						accepted++
					} else {
						totalRejected++
					}
				}

				fmt.Printf("  ✓ Recorded %d readings in %v\n", accepted, time.Since(start))
				totalAccepted += accepted
			}

			fmt.Printf("\n%s\n", ingestSummary(totalAccepted, totalRejected, failedFiles))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "File format (csv, json, log)")
	cmd.Flags().BoolVarP(&validate, "validate", "v", true, "Validate readings before recording")
	return cmd
}

func ingestSummary(accepted, rejected, failedFiles int) string {
	summary := fmt.Sprintf("Total: %d readings recorded", accepted)
	if rejected > 0 {
		summary += fmt.Sprintf(", %d rejected", rejected)
	}
	if failedFiles > 0 {
		summary += fmt.Sprintf(", %d files failed to parse", failedFiles)
	}
	return summary
}

// recentCmd shows the most recent readings
func recentCmd() *cobra.Command {
	var limit int
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			return printReadings(os.Stdout, readingsLog().Recent(limit), outputFormat)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum readings to show (0 for all)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// windowCmd shows the readings of the past five minutes
func windowCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show the readings of the past 5 minutes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			return printReadings(os.Stdout, readingsLog().Past5Minutes(), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// clearCmd empties the readings log
func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			if err := readingsLog().Clear(); err != nil {
				return err
			}
			fmt.Println("✓ Readings cleared")
			return nil
		},
	}
}

// tankCmd manages tank entries
func tankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tank",
		Short: "Tank entry commands",
	}

	var fuelAdded, fuelLevel, odometer float64
	var note string

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log a tank entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			flags := cmd.Flags()
			info := models.TankInfo{Note: note}
			if flags.Changed("fuel-added") {
				info.FuelAdded = models.Float(fuelAdded)
			}
			if flags.Changed("fuel-level") {
				info.FuelLevel = models.Float(fuelLevel)
			}
			if flags.Changed("odometer") {
				info.OdometerReading = models.Float(odometer)
			}

			entry, err := entriesLog().Log(info)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Logged tank entry #%d at %s\n", entry.ID, entry.Time.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	logCmd.Flags().Float64Var(&fuelAdded, "fuel-added", 0, "Fuel added (L)")
	logCmd.Flags().Float64Var(&fuelLevel, "fuel-level", 0, "Fuel level after the event (%)")
	logCmd.Flags().Float64Var(&odometer, "odometer", 0, "Odometer reading (km)")
	logCmd.Flags().StringVarP(&note, "note", "m", "", "Free-form note")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tank entries, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			el := entriesLog()
			list := el.Entries()
			if len(list) == 0 {
				fmt.Println("No tank entries found. Use 'obdlog tank log' to add one.")
				return nil
			}

			fmt.Printf("Latest id: %d\n\n", el.LatestID())
			fmt.Printf("%-5s %-20s %-10s %-10s %-12s %s\n", "ID", "Time", "Added", "Level", "Odometer", "Note")
			for _, e := range list {
				fmt.Printf("%-5d %-20s %-10s %-10s %-12s %s\n",
					e.ID, e.Time.Format("2006-01-02 15:04:05"),
					formatFloat(e.TankInfo.FuelAdded, "%.1f L"),
					formatFloat(e.TankInfo.FuelLevel, "%.1f%%"),
					formatFloat(e.TankInfo.OdometerReading, "%.1f km"),
					e.TankInfo.Note)
			}
			return nil
		},
	}

	cmd.AddCommand(logCmd, listCmd)
	return cmd
}

// simulateCmd records synthetic readings until interrupted or the duration ends
func simulateCmd() *cobra.Command {
	var interval time.Duration
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record synthetic readings without an OBD-II adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSimulateFlags(interval, duration); err != nil {
				return err
			}
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			dataChan := make(chan models.DataPoint, 1)
			gen := simulate.NewGenerator(interval, cfg.TankCapacity)
			go gen.Run(ctx, dataChan)

			accepted, rejected, err := simulate.Drain(ctx, dataChan, readingsLog())
			fmt.Printf("✓ Recorded %d simulated readings", accepted)
			if rejected > 0 {
				fmt.Printf(", %d rejected", rejected)
			}
			fmt.Println()
			return err
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Time between readings")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func checkSimulateFlags(interval, duration time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("interval must be positive, got %v", interval)
	}
	if duration < 0 {
		return errors.Errorf("duration must not be negative, got %v", duration)
	}
	return nil
}

// statusCmd summarizes the stored logs
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored keys and log sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return errors.Wrap(err, "database error")
			}
			defer database.Close()

			keys, err := database.Keys()
			if err != nil {
				return err
			}
			fmt.Printf("Database: %s\n", cfg.DBPath)
			fmt.Printf("Stored keys: %v\n\n", keys)

			rl := readingsLog()
			fmt.Printf("Readings:          %d\n", len(rl.Readings()))
			fmt.Printf("Past 5 minutes:    %d\n", len(rl.Past5Minutes()))
			fmt.Printf("Tank entries:      %d (latest id %d)\n", len(entriesLog().Entries()), entriesLog().LatestID())
			return nil
		},
	}
}

func printReadings(w io.Writer, rs []models.DataPoint, outputFormat string) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	case "table":
	default:
		return errors.Errorf("unsupported output format: %s", outputFormat)
	}

	fmt.Fprintf(w, "Found %d readings\n\n", len(rs))
	for _, r := range rs {
		at := "-"
		if r.Time != nil {
			at = r.Time.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "[%s] RPM: %s | Water: %s | Fuel: %s (%s) | Rate: %s | Load: %s\n",
			at,
			formatInt(r.RPM, "%d"),
			formatInt(r.WaterTemp, "%d°C"),
			formatFloat(r.FuelLevel, "%.1f%%"),
			formatFloat(r.FuelInTank, "%.1f L"),
			formatFloat(r.FuelRate, "%.1f L/h"),
			formatFloat(r.EngineLoad, "%.0f%%"))
		if r.Latitude != nil && r.Longitude != nil {
			fmt.Fprintf(w, "     Pos: %.6f,%.6f\n", *r.Latitude, *r.Longitude)
		}
	}
	return nil
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func formatInt(v *int, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
