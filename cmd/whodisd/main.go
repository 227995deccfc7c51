package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"reflect"
	"sync"
	"syscall"

	"whodis/internal/config"
	"whodis/internal/pipeline"
	"whodis/internal/probe"
	"whodis/internal/store/sqlite"
	"whodis/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting whodis daemon...")

	// Load configuration
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if *configPath != "" {
		cfg, path, err = config.LoadFromPath(*configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if path != "" {
		log.Printf("Config loaded: %s", path)
	} else {
		log.Printf("No config file found, using defaults")
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Open the backing store
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed operator aliases from the config file
	for mac, name := range cfg.Aliases {
		if err := st.SetAlias(ctx, mac, name); err != nil {
			log.Printf("Failed to seed alias %s=%s: %v", mac, name, err)
		}
	}

	// Build the probe backend
	prober, err := probe.New(cfg.Probe.Backend, probeSettings(cfg.Probe))
	if err != nil {
		log.Fatalf("Failed to build probe: %v", err)
	}
	if err := prober.Available(); err != nil {
		log.Fatalf("Probe %s not usable: %v", prober.Name(), err)
	}
	log.Printf("Probe backend ready: %s", prober.Name())

	// Wire the pipeline
	coordinator, err := pipeline.NewCoordinator(prober, st, cfg.Scan.ProbeTimeout.Duration())
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}
	coordinator.SetAliasResolver(st)

	if count, err := st.EventCount(ctx); err == nil {
		log.Printf("Event stream length: %d", count)
	}

	scheduler := pipeline.NewScheduler(coordinator, cfg.Scan.Interval.Duration())

	// Hot-reload scan interval and probe settings when the config file changes
	if path != "" {
		var reloadMu sync.Mutex // debounced callbacks can overlap
		probeCfg := cfg.Probe
		w := watcher.New(path, func() {
			reloadMu.Lock()
			defer reloadMu.Unlock()

			updated, _, err := config.LoadFromPath(path)
			if err != nil {
				log.Printf("Config reload failed, keeping previous settings: %v", err)
				return
			}
			scheduler.SetInterval(updated.Scan.Interval.Duration())

			if reflect.DeepEqual(updated.Probe, probeCfg) {
				return
			}
			swapped, err := probe.New(updated.Probe.Backend, probeSettings(updated.Probe))
			if err != nil {
				log.Printf("Config reload: invalid probe settings, keeping previous: %v", err)
				return
			}
			if err := swapped.Available(); err != nil {
				log.Printf("Config reload: probe %s not usable, keeping previous: %v", swapped.Name(), err)
				return
			}
			coordinator.SetProber(swapped)
			probeCfg = updated.Probe
		})
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Config watcher stopped: %v", err)
			}
		}()
	}

	scheduler.Run(ctx)
	log.Println("Shutdown complete")
}

// probeSettings maps file configuration onto probe backend settings
func probeSettings(pc config.ProbeConfig) probe.Settings {
	return probe.Settings{
		Binary:    pc.Binary,
		Interface: pc.Interface,
		Targets:   pc.Targets,
		ExtraArgs: pc.ExtraArgs,
		SSHAddr:   pc.SSHAddr,
		SSHUser:   pc.SSHUser,
		SSHKey:    pc.SSHKey,
	}
}
