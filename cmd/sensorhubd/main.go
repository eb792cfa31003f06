package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"sensorhub-go/bus"
	"sensorhub-go/services/bridge"
	"sensorhub-go/services/config"
	"sensorhub-go/services/recorder"
	"sensorhub-go/services/sensors"
	"sensorhub-go/services/sensors/platform"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		dataDir    string
		i2cDev     string
		debug      bool
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&dataDir, "data", "", "Directory for recording databases (empty disables recording)")
	flag.StringVar(&i2cDev, "i2c", "", "I2C adapter device for bus \"i2c0\" (empty uses the simulated sensor)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, configPath, dataDir, i2cDev); err != nil {
		logger.Error(err.Error())
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dataDir, i2cDev string) error {
	buses, err := createBuses(i2cDev)
	if err != nil {
		return err
	}

	b := bus.NewBus(32)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sensors.Run(ctx, b.NewConnection("sensors"), buses, sensors.WithLogger(logger))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.Start(ctx, b.NewConnection("bridge"), bridge.WithLogger(logger))
	}()

	if dataDir != "" {
		store, err := createStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := recorder.New(store, recorder.WithLogger(logger))
			if err := rec.Run(ctx, b.NewConnection("recorder"), hostname()); err != nil {
				logger.Error("recorder stopped", slog.Any("error", err))
			}
		}()
	}

	// Config last: services subscribe first, then pick up retained sections.
	cfgSvc := config.New(configPath, config.WithLogger(logger))
	if err := cfgSvc.Publish(b.NewConnection("config")); err != nil {
		return err
	}

	logger.Info("sensor hub running", slog.String("config", configPath))
	<-ctx.Done()
	wg.Wait()
	return nil
}

func createBuses(i2cDev string) (*platform.Factory, error) {
	f := platform.NewFactory()
	if i2cDev == "" {
		f.Add("i2c0", platform.NewSimBMP280())
		return f, nil
	}
	dev, err := platform.OpenLinuxI2C(i2cDev)
	if err != nil {
		return nil, err
	}
	f.Add("i2c0", dev)
	return f, nil
}

func createStore(dataDir string) (*recorder.Store, error) {
	stat, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("storage directory %q: %w", dataDir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory %q", dataDir)
	}
	dbPath := filepath.Join(dataDir,
		fmt.Sprintf("hub_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return recorder.NewStore(dbPath), nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "sensorhub"
	}
	return h
}
