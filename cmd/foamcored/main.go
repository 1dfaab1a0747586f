// Command foamcored is the FoamCore orchestrator daemon: it wires every
// component (case configuration, caches, the container runner, the run
// journal) to the HTTP and WebSocket surfaces and serves them on one
// address.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/api"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/cachegov"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/config"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/container"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/field"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/journal"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logparser"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/pathsafe"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/series"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/timeindex"
	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/wsfanout"
)

const logTag = "foamcored"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "foamcored",
		Short: "FoamCore orchestrator daemon",
		Long: `foamcored serves the HTTP and WebSocket surface that drives
containerized OpenFOAM solver runs: case configuration, cached
time-series and residual data, and a run journal, all backed by a
single Docker image per deployment.`,
	}
	root.AddCommand(serveCommand())
	root.AddCommand(versionCommand())
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the foamcored version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("foamcored", version)
		},
	}
}

func serveCommand() *cobra.Command {
	var (
		addr            string
		caseRoot        string
		dbPath          string
		dockerImage     string
		openfoamVersion string
		cacheMaxCases   int
		allowedOrigins  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the FoamCore HTTP/WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveOptions{
				addr:            addr,
				caseRoot:        caseRoot,
				dbPath:          dbPath,
				dockerImage:     dockerImage,
				openfoamVersion: openfoamVersion,
				cacheMaxCases:   cacheMaxCases,
				allowedOrigins:  allowedOrigins,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "0.0.0.0:5000", "address to listen on")
	flags.StringVar(&caseRoot, "case-root", "", "initial case root directory (overrides the persisted config)")
	flags.StringVar(&dbPath, "db-path", "foamcore_runs.db", "path to the run journal database")
	flags.StringVar(&dockerImage, "docker-image", "openfoam/openfoam-dev:latest", "default Docker image for solver runs")
	flags.StringVar(&openfoamVersion, "openfoam-version", "", "default OpenFOAM version label")
	flags.IntVar(&cacheMaxCases, "cache-max-cases", 0, "resident case cap (0 = use CACHE_MAX_CASES env or default)")
	flags.StringSliceVar(&allowedOrigins, "allowed-origin", nil, "allowed Origin header for state-changing requests (repeatable)")

	return cmd
}

type serveOptions struct {
	addr            string
	caseRoot        string
	dbPath          string
	dockerImage     string
	openfoamVersion string
	cacheMaxCases   int
	allowedOrigins  []string
}

func runServe(opts serveOptions) error {
	cfg, err := config.Load("case_config.json", config.Data{
		DockerImage: opts.dockerImage,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.caseRoot != "" {
		if _, err := cfg.SetCaseRoot(opts.caseRoot); err != nil {
			return fmt.Errorf("setting case root: %w", err)
		}
	}
	if opts.openfoamVersion != "" {
		if _, err := cfg.SetDockerConfig(opts.dockerImage, opts.openfoamVersion); err != nil {
			return fmt.Errorf("setting docker config: %w", err)
		}
	}

	capacity := opts.cacheMaxCases
	if capacity <= 0 {
		capacity = cacheMaxCasesFromEnv()
	}
	capacity = cfg.CacheMaxCases(capacity)

	governor := cachegov.New(capacity)
	fieldCache := field.NewCache()
	timeCache := timeindex.NewCache()
	residualsCache := logparser.NewCache()
	seriesEngine := series.NewEngine(fieldCache, timeCache, governor)
	governor.Register(fieldCache)
	governor.Register(timeCache)
	governor.Register(residualsCache)

	jrn, err := journal.Open(opts.dbPath)
	if err != nil {
		return fmt.Errorf("opening run journal: %w", err)
	}
	defer jrn.Close()

	var runner *container.Runner
	cli, err := container.NewClient()
	if err != nil {
		logging.Errorf(logTag, "docker client unavailable, runs will be rejected: %v", err)
	} else {
		runner = container.NewRunner(cli, cfg.Snapshot().DockerImage)
	}

	apiDeps := &api.Deps{
		Config:         cfg,
		Series:         seriesEngine,
		Residuals:      residualsCache,
		Times:          timeCache,
		Governor:       governor,
		Runner:         runner,
		Journal:        jrn,
		AllowedOrigins: opts.allowedOrigins,
		MaxPoints:      2000,
	}
	router := api.NewRouter(apiDeps)

	wsDeps := &wsfanout.Deps{
		Series:         seriesEngine,
		Residuals:      residualsCache,
		Times:          timeCache,
		AllowedOrigins: opts.allowedOrigins,
		MaxPoints:      2000,
	}
	router.HandleFunc("/ws/data", wsDeps.Handler(func(tutorial string) (string, error) {
		return resolveCaseDir(cfg, tutorial)
	}))

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       0, // run streaming and uploads can legitimately run long
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logging.Infof(logTag, "listening on %s", opts.addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		logging.Infof(logTag, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	}
	return nil
}

func cacheMaxCasesFromEnv() int {
	raw := os.Getenv("CACHE_MAX_CASES")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func resolveCaseDir(cfg *config.Store, tutorial string) (string, error) {
	if tutorial == "" {
		return "", fmt.Errorf("tutorial is required")
	}
	return pathsafe.Resolve(cfg.Snapshot().CaseRoot, tutorial)
}
