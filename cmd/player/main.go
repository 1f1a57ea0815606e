// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/filter"
	"github.com/osa030/19deck/internal/app/session"
	"github.com/osa030/19deck/internal/controller"
	"github.com/osa030/19deck/internal/infra/audio"
	"github.com/osa030/19deck/internal/infra/config"
	"github.com/osa030/19deck/internal/infra/logger"
)

var (
	app        = kingpin.New("19deck", "19deck playlist player")
	configPath = app.Flag("config", "Path to config file (defaults only when empty)").Envar("DECK_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file").String()

	startCmd   = app.Command("start", "Play the library (default)").Default()
	startPaths = startCmd.Arg("paths", "Files or directories to add to the library").Strings()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")

	// probe command
	probeCmd   = app.Command("probe", "Print track metadata and exit")
	probePaths = probeCmd.Arg("files", "Audio files").Required().Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	closer, err := logger.Init(cfg.LoggerConfig())
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	switch command {
	case probeCmd.FullCommand():
		if err := probe(*probePaths); err != nil {
			zlog.Error().Msgf("Probe failed: %v", err)
			os.Exit(1)
		}
	default:
		// run is separate so deferred cleanup executes before exiting
		if err := run(cfg); err != nil {
			zlog.Error().Msgf("Player error: %v", err)
			closer.Close()
			os.Exit(1)
		}
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logfile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = *logfile
	}
	if len(*startPaths) > 0 {
		cfg.Library.Paths = append(cfg.Library.Paths, *startPaths...)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// run executes the player until the user quits or a signal arrives.
func run(cfg *config.Config) error {
	output, err := audio.NewOutput(cfg.Audio.SampleRate, cfg.Audio.BufferMs, cfg.Audio.DeviceQueueFrames)
	if err != nil {
		return errors.Wrap(err, "failed to open audio output")
	}
	defer output.Close()
	if !audio.Available {
		zlog.Warn().Msg("Built without audio support, playback is silent")
	}

	decoder := audio.NewDecoder(cfg.Audio.SampleRate, cfg.Audio.ResampleQuality)

	sessionMgr, err := session.NewManager(cfg, audio.NewProber(), decoder, output)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	defer sessionMgr.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sessionMgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	keyboard := controller.NewKeyboard()
	if err := keyboard.Run(ctx, sessionMgr); err != nil {
		return err
	}

	zlog.Info().Msg("Player stopped")
	return nil
}

// probe prints the metadata of each file.
func probe(paths []string) error {
	prober := audio.NewProber()
	var failed []string
	for _, path := range paths {
		t, err := prober.Probe(path)
		if err != nil {
			zlog.Warn().Msgf("Failed to probe %s: %v", path, err)
			failed = append(failed, path)
			continue
		}
		fmt.Printf("%s\n", t.Path)
		fmt.Printf("  Title:  %s\n", t.Title)
		fmt.Printf("  Artist: %s\n", t.Artist)
		fmt.Printf("  Album:  %s\n", t.Album)
		fmt.Printf("  Format: %s %dHz\n", t.Format, t.SampleRate)
		fmt.Printf("  Length: %s (%d frames, %.3f ms/frame)\n", t.Length, t.FrameCount, t.MsPerFrame)
	}
	if len(failed) > 0 {
		return errors.Newf("%d file(s) could not be probed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name](filter.Deps{})
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
