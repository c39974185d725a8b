package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/OCAP2/evacsim/internal/api"
	"github.com/OCAP2/evacsim/internal/config"
	"github.com/OCAP2/evacsim/internal/decision"
	"github.com/OCAP2/evacsim/internal/dispatcher"
	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/hazard"
	"github.com/OCAP2/evacsim/internal/influx"
	"github.com/OCAP2/evacsim/internal/logging"
	"github.com/OCAP2/evacsim/internal/monitor"
	intOtel "github.com/OCAP2/evacsim/internal/otel"
	"github.com/OCAP2/evacsim/internal/parser"
	"github.com/OCAP2/evacsim/internal/scenario"
	"github.com/OCAP2/evacsim/internal/session"
	"github.com/OCAP2/evacsim/internal/sim"
	"github.com/OCAP2/evacsim/internal/storage"
	"github.com/OCAP2/evacsim/internal/tuning"
	"github.com/OCAP2/evacsim/internal/worker"
	"github.com/OCAP2/evacsim/pkg/core"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "evacsim"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Session tags every log line with the running run and episode
	Session *session.Context = session.NewContext()

	SessionStartTime time.Time = time.Now()

	LogFilePath string
	LogFile     *os.File

	// closers run in reverse order on exit
	closers []io.Closer
)

type options struct {
	configDir string
	overrides map[string]any
}

// parseFlags reads the command line. Flags that were set override the config file.
func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.ConfigFile)
	dataset := fs.String("dataset", "", "hazard dataset (.bin, .zst, .csv, .json)")
	layout := fs.String("layout", "", "floor layout YAML")
	tuningFile := fs.String("tuning", "", "behavior tuning YAML")
	mode := fs.String("mode", "", "panic mode: dynamic, mixed, calm, anxious, panicked")
	episodes := fs.Int("episodes", 0, "episodes to run")
	occupants := fs.Int("occupants", 0, "occupants per episode")
	seed := fs.Int64("seed", 0, "random seed")
	storageType := fs.String("storage", "", "storage backend: memory, sqlite, postgres, websocket")
	pace := fs.Float64("pace", 0, "simulated seconds per wall second, 0 runs unthrottled")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{configDir: *configDir, overrides: map[string]any{}}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dataset":
			opts.overrides["sim.dataset"] = *dataset
		case "layout":
			opts.overrides["sim.layout"] = *layout
		case "tuning":
			opts.overrides["sim.tuning"] = *tuningFile
		case "mode":
			opts.overrides["sim.panicMode"] = *mode
		case "episodes":
			opts.overrides["sim.episodes"] = *episodes
		case "occupants":
			opts.overrides["sim.occupants"] = *occupants
		case "seed":
			opts.overrides["sim.seed"] = *seed
		case "storage":
			opts.overrides["storage.type"] = *storageType
		case "pace":
			opts.overrides["sim.pace"] = *pace
		}
	})
	return opts, nil
}

func loadConfig(opts options) error {
	err := config.Load(opts.configDir)
	for k, v := range opts.overrides {
		viper.Set(k, v)
	}
	return err
}

// setupLogging opens the run log file and rebuilds the slog handlers with the optional OTel
// and Graylog outputs.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.SetContextProvider(Session.Attrs)
	SlogManager.Setup(nil, viper.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && LogFile != nil {
		OTelProvider, err = intOtel.New(intOtel.ConfigFrom(otelCfg, LogFile))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		}
	}

	var extra []slog.Handler
	if viper.GetBool("graylog.enabled") {
		h, c, err := logging.NewGELFHandler(viper.GetString("graylog.address"), viper.GetString("logLevel"))
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			extra = append(extra, h)
			closers = append(closers, c)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	var out io.Writer
	if LogFile != nil {
		out = io.MultiWriter(LogFile, os.Stdout)
	}
	SlogManager.Setup(out, viper.GetString("logLevel"), otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
}

// storeLogger is the zerolog logger handed to the database and influx layers.
func storeLogger(component string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if LogFile != nil {
		w = io.MultiWriter(LogFile, os.Stdout)
	}
	return logging.NewZerolog(w, viper.GetString("logLevel"), component)
}

func loadDataset(cfg config.SimConfig) (*hazard.Dataset, error) {
	p, err := parser.NewParser(Logger)
	if err != nil {
		return nil, err
	}
	samples, err := p.Load(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	ds, err := hazard.Build(samples, hazard.DefaultOptions())
	if err != nil {
		return nil, err
	}
	Logger.Info("Hazard dataset loaded",
		"path", cfg.Dataset,
		"frames", ds.Len(),
		"samples", ds.Samples(),
		"dropped", ds.Dropped(),
		"duration", ds.Duration())
	return ds, nil
}

func loadLayout(path string) (scenario.Layout, error) {
	if path == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(path)
}

func loadTuning(path string) (tuning.Tuning, error) {
	if path == "" {
		return tuning.Default(), nil
	}
	return tuning.Load(path)
}

// setupInflux connects the population metrics sink. Nil is returned when it is disabled.
func setupInflux(ctx context.Context) *influx.Manager {
	backup := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(config.GetInfluxConfig(), storeLogger("influx"), backup)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			Logger.Error("Failed to set up InfluxDB", "error", err)
		}
		return nil
	}
	closers = append(closers, m)
	return m
}

func checkServerStatus(client *api.Client) {
	if err := client.Healthcheck(); err != nil {
		Logger.Info("Results server is offline", "error", err)
		return
	}
	Logger.Info("Results server is online")
}

func run(ctx context.Context) error {
	simCfg := config.GetSimConfig()

	ds, err := loadDataset(simCfg)
	if err != nil {
		return err
	}
	layout, err := loadLayout(simCfg.Layout)
	if err != nil {
		return err
	}
	tun, err := loadTuning(simCfg.Tuning)
	if err != nil {
		return err
	}
	anchor, err := geo.ParseAnchor(viper.GetString("site.anchor"))
	if err != nil {
		return fmt.Errorf("site.anchor: %w", err)
	}

	cfg := sim.Config{
		Dt:             simCfg.Dt,
		EpisodeTimeout: simCfg.EpisodeTimeout,
		Episodes:       simCfg.Episodes,
		Occupants:      simCfg.Occupants,
		Workers:        simCfg.Workers,
		TargetDuration: simCfg.TargetDuration,
		SnapshotEvery:  simCfg.SnapshotEvery,
		Seed:           simCfg.Seed,
		PanicMode:      simCfg.PanicMode,
		Pace:           viper.GetFloat64("sim.pace"),
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	backend, err := createStorageBackend(config.GetStorageConfig(), anchor, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	events, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	deps := worker.Dependencies{Logger: Logger}
	metricsSink := setupInflux(ctx)
	if metricsSink != nil {
		deps.Metrics = metricsSink
	}
	workerManager := worker.NewManager(deps, backend)
	workerManager.RegisterHandlers(events)

	simOpts := []sim.Option{
		sim.WithTuning(&tun),
		sim.WithDispatcher(events),
		sim.WithLogger(Logger),
		sim.WithSession(Session),
	}
	if simCfg.PolicyURL != "" {
		client := api.New(simCfg.PolicyURL, viper.GetString("api.apiKey")).WithTimeout(500 * time.Millisecond)
		simOpts = append(simOpts, sim.WithProvider(decision.NewRemote(client)))
		Logger.Info("Using remote decision policy", "url", simCfg.PolicyURL)
	}

	simulation, err := sim.New(ds, layout, cfg, simOpts...)
	if err != nil {
		return err
	}

	runInfo := &core.Run{
		ID:          uuid.NewString(),
		StartTime:   SessionStartTime.UTC(),
		PanicMode:   cfg.PanicMode,
		DatasetPath: simCfg.Dataset,
		Occupants:   simulation.Config().Occupants,
		Agents:      len(layout.Agents),
		Tag:         viper.GetString("defaultTag"),
	}
	Session.SetRun(runInfo)
	if metricsSink != nil {
		metricsSink.SetRun(runInfo)
	}
	if err := backend.StartRun(runInfo); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		Logger:        Logger,
		Session:       Session,
		WorkerManager: workerManager,
		Active:        workerManager.Alive,
		StatusPath:    viper.GetString("statusFile"),
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}

	Logger.Info("Run started",
		"run", runInfo.ID,
		"panicMode", runInfo.PanicMode,
		"episodes", cfg.Episodes,
		"occupants", runInfo.Occupants)

	report, runErr := simulation.Run(ctx)
	if runErr != nil {
		Logger.Error("Run stopped early", "error", runErr, "episodes", report.TotalEpisodes)
	}

	// drain buffered subscribers before the backend sees the end of the run
	events.Close()
	monitorService.Stop()

	if err := backend.EndRun(report); err != nil {
		Logger.Error("Failed to end run", "error", err)
	}

	if path, err := sim.SaveFinalResult(simCfg.ResultsDir, report, time.Now()); err != nil {
		Logger.Error("Failed to save final result", "error", err)
	} else {
		Logger.Info("Final result saved", "path", path)
	}

	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}

	if viper.GetBool("api.upload") {
		uploadResults(backend)
	}

	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("OTel flush failed", "error", err)
		}
	}
	return runErr
}

// uploadResults sends the exported run file to the results server when the backend wrote one.
func uploadResults(backend storage.Backend) {
	u, ok := backend.(storage.Uploadable)
	if !ok {
		return
	}
	path := u.GetExportedFilePath()
	if path == "" {
		Logger.Warn("No export to upload")
		return
	}
	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	checkServerStatus(client)
	if err := client.Upload(path, u.GetExportMetadata()); err != nil {
		Logger.Error("Upload failed", "error", err, "path", path)
		return
	}
	Logger.Info("Run uploaded", "path", path)
}

func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			Logger.Warn("Close failed", "error", err)
		}
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfgErr := loadConfig(opts)
	setupLogging()
	if cfgErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		Logger.Info("Loaded config", "dir", opts.configDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx)
	stop()
	shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "evacsim:", err)
		os.Exit(1)
	}
}
