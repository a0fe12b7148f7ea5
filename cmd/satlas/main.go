package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"github.com/vanderheijden86/siteatlas/internal/datasource"
	"github.com/vanderheijden86/siteatlas/pkg/analysis"
	"github.com/vanderheijden86/siteatlas/pkg/config"
	"github.com/vanderheijden86/siteatlas/pkg/engine"
	"github.com/vanderheijden86/siteatlas/pkg/export"
	"github.com/vanderheijden86/siteatlas/pkg/loader"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/ui"
	"github.com/vanderheijden86/siteatlas/pkg/version"
	"github.com/vanderheijden86/siteatlas/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// keepGenerations bounds the position cache: older dataset generations are
// pruned after each session.
const keepGenerations = 16

func main() {
	dataPath := flag.String("data", "", "Dataset file (JSONL, one node per line)")
	configPath := flag.String("config", "", "Config file (default: ~/.config/satlas/config.yaml)")
	positionsPath := flag.String("positions", "", "Position cache (SQLite; default: state dir)")
	exportPath := flag.String("export", "", "Render a snapshot to this path instead of starting the TUI")
	exportFormat := flag.String("export-format", "", "Snapshot format: png, svg, or both (default: from extension)")
	exportSize := flag.String("export-size", "", "Snapshot size as WIDTHxHEIGHT (default 1600x1000)")
	exportLabels := flag.Bool("export-labels", true, "Draw node labels on snapshots")
	exportWizard := flag.Bool("export-wizard", false, "Interactive snapshot export")
	statsFlag := flag.Bool("stats", false, "Print taxonomy statistics and exit")
	statsFormat := flag.String("stats-format", "text", "Statistics output: text or json")
	watchFlag := flag.Bool("watch", false, "Reload the dataset when the file changes (TUI only)")
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: satlas [options]")
		fmt.Println("\nAn interactive site-taxonomy graph viewer.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("satlas %s\n", version.Version)
		os.Exit(0)
	}

	// Load config; missing or broken files are non-fatal.
	var cfg config.Config
	var cfgErr error
	if *configPath != "" {
		cfg, cfgErr = config.LoadFrom(*configPath)
	} else {
		cfg, cfgErr = config.Load()
	}
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: config not loaded: %v\n", cfgErr)
		cfg = config.DefaultConfig()
	}

	path := resolveDataPath(*dataPath, cfg)
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no dataset given. Pass --data or set data_path in the config.")
		os.Exit(2)
	}

	parseOpts := loader.ParseOptions{ParentLinkStrength: cfg.Physics.ParentLinkStrength}
	ds, err := loader.LoadFile(path, parseOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset: %v\n", err)
		os.Exit(1)
	}
	if len(ds.Nodes) == 0 {
		fmt.Println("Dataset is empty. Nothing to show.")
		os.Exit(0)
	}

	// Stats mode needs no cache or surface.
	if *statsFlag {
		st := analysis.Analyze(ds)
		st.Wait()
		if err := writeStats(os.Stdout, path, ds, st, *statsFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing stats: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Position cache: a pure cache, all failures are warnings.
	var cache *datasource.PositionCache
	var positions map[string]model.Point
	if cachePath := resolvePositionsPath(*positionsPath, cfg); cachePath != "" {
		cache, err = datasource.OpenPositionCache(cachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: position cache unavailable: %v\n", err)
		} else {
			defer cache.Close()
			positions, err = cache.Load(ds.Generation)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: position cache read failed: %v\n", err)
			}
		}
	}

	if *exportWizard {
		res, err := export.RunWizard(ds, positions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		printExportResult(res)
		os.Exit(0)
	}

	if *exportPath != "" {
		if err := runExport(ds, positions, cfg, *exportPath, *exportFormat, *exportSize, *exportLabels); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal. Use --export or --stats for headless runs.")
		os.Exit(2)
	}

	uiCfg := ui.Config{
		Dataset:   ds,
		Positions: positions,
		Engine:    engine.FromSettings(cfg),
		FPS:       cfg.Engine.TargetFPS,
		Theme:     cfg.Render.Theme,
	}

	if *watchFlag {
		w, err := watcher.NewWatcher(path,
			watcher.WithOnError(func(err error) {
				fmt.Fprintf(os.Stderr, "Warning: watcher: %v\n", err)
			}),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: watch disabled: %v\n", err)
		} else if err := w.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: watch disabled: %v\n", err)
		} else {
			defer w.Stop()
			uiCfg.Changes = w.Changed()
			uiCfg.Reload = func() (*model.Dataset, error) {
				return loader.LoadFile(path, parseOpts)
			}
		}
	}

	m := ui.New(uiCfg)
	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running satlas: %v\n", err)
		os.Exit(1)
	}

	// Persist the final layout so the next session starts where this one
	// ended. The engine outlives the bubbletea model copies.
	if cache != nil {
		eng := m.Engine()
		if err := cache.Save(eng.Generation(), eng.Positions()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: position cache write failed: %v\n", err)
		} else if err := cache.Prune(keepGenerations); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: position cache prune failed: %v\n", err)
		}
	}
}

// resolveDataPath picks the dataset file: flag first, then config.
func resolveDataPath(flagValue string, cfg config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.DataPath
}

// resolvePositionsPath picks the cache location: flag, config, then the
// default state dir.
func resolvePositionsPath(flagValue string, cfg config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.PositionsPath != "" {
		return cfg.PositionsPath
	}
	return config.DefaultPositionsPath()
}

func runExport(ds *model.Dataset, positions map[string]model.Point, cfg config.Config, base, format, size string, labels bool) error {
	pngPath, svgPath, err := export.SnapshotPaths(base, format)
	if err != nil {
		return err
	}
	opts := export.Options{
		PNGPath:   pngPath,
		SVGPath:   svgPath,
		Theme:     cfg.Render.Theme,
		Labels:    labels,
		Positions: positions,
	}
	if size != "" {
		opts.Width, opts.Height, err = export.ParseSize(size)
		if err != nil {
			return err
		}
	}
	res, err := export.Snapshot(ds, opts)
	if err != nil {
		return err
	}
	printExportResult(res)
	return nil
}

func printExportResult(res export.Result) {
	for _, p := range []string{res.PNGPath, res.SVGPath} {
		if p != "" {
			fmt.Printf("wrote %s\n", p)
		}
	}
	fmt.Printf("%d nodes, %d links, %d settle ticks", res.Nodes, res.Links, res.Ticks)
	if !res.Settled {
		fmt.Print(" (tick budget hit before the layout came to rest)")
	}
	fmt.Println()
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set SATLAS_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("SATLAS_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
