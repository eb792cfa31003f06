package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"sensorhub-go/services/sensors"
	"sensorhub-go/services/sensors/platform"
	"sensorhub-go/types"
)

// sensorlist prints the sensor list a hub would publish for a given
// configuration, without starting the daemon. Sensors are built against the
// simulated bus, so no hardware is required.
func main() {
	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "sensorlist: no configuration file provided")
		os.Exit(1)
	}

	cfg, err := loadSensorsConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensorlist: %v\n", err)
		os.Exit(1)
	}

	buses := platform.NewFactory().Add("i2c0", platform.NewSimBMP280())
	entries, err := sensors.Enumerate(context.Background(), cfg, buses)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sensorlist: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tNAME\tVENDOR\tVER\tMAX RATE\tMIN RATE\tRANGE\tRESOLUTION\tFIFO\tMODE")
	for _, e := range entries {
		d := e.Descriptor
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Handle, d.Name, d.Vendor, d.Version,
			rate(d.MinDelayUs), rate(d.MaxDelayUs),
			humanize.Ftoa(d.Range), humanize.Ftoa(d.Resolution),
			fifo(d), mode(d.Flags))
	}
	w.Flush()

	fmt.Printf("\n%s published (platform limit %d)\n",
		english(len(entries)), sensors.MaxNumSensors)
}

func rate(delayUs int32) string {
	if delayUs <= 0 {
		return "-"
	}
	hz := 1e6 / float64(delayUs)
	if hz >= 1 {
		return humanize.FtoaWithDigits(hz, 1) + " Hz"
	}
	return (time.Duration(delayUs) * time.Microsecond).String() // sub-Hz shown as its period
}

func fifo(d types.Descriptor) string {
	if d.FIFOMaxCount == 0 {
		return "none"
	}
	return fmt.Sprintf("%s (%s reserved)",
		humanize.Comma(int64(d.FIFOMaxCount)), humanize.Comma(int64(d.FIFOReserveCount)))
}

func mode(f types.Flags) string {
	switch f.ReportingMode() {
	case types.FlagContinuousMode:
		return "continuous"
	case types.FlagOnChangeMode:
		return "on-change"
	case types.FlagOneShotMode:
		return "one-shot"
	default:
		return "special"
	}
}

func english(n int) string {
	if n == 1 {
		return "1 sensor"
	}
	return fmt.Sprintf("%s sensors", humanize.Comma(int64(n)))
}

func loadSensorsConfig(path string) (types.SensorsConfig, error) {
	var sections struct {
		Sensors types.SensorsConfig `yaml:"sensors"`
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.SensorsConfig{}, err
	}
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return types.SensorsConfig{}, err
	}
	return sections.Sensors, nil
}
