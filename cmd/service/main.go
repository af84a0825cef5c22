package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"

	"music-action-service/internal/api"
	"music-action-service/internal/config"
	"music-action-service/internal/device"
	"music-action-service/internal/executor"
	"music-action-service/internal/filter"
	"music-action-service/internal/program"
	"music-action-service/internal/schema"
)

func main() {
	app := &cli.App{
		Name:  "music-action-service",
		Usage: "Validate and run music player action programs.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional dotenv file read before the environment",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "Run a program file and print the report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
				},
				Action: runProgram,
			},
			{
				Name:  "validate",
				Usage: "Check a program file without running it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
				},
				Action: validateProgram,
			},
			{
				Name:      "filter",
				Usage:     "Parse a filter expression and print its canonical form",
				ArgsUsage: "<expr>",
				Action:    parseFilter,
			},
			{
				Name:   "schema",
				Usage:  "Print the action schema as JSON",
				Action: printSchema,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("music-action-service: %v", err)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	opts := []api.Option{api.WithJWTSecret(cfg.JWTSecret)}
	if deps.playlists != nil {
		opts = append(opts, api.WithPlaylists(deps.playlists))
	}
	if deps.hub != nil {
		go deps.hub.Run(ctx)
		if deps.rdb != nil {
			go func() {
				if err := device.RunSubscriber(ctx, deps.rdb, deps.hub); err != nil {
					log.Printf("music-action-service: player subscriber: %v", err)
				}
			}()
		}
		opts = append(opts, api.WithDevices(device.NewHandler(deps.hub, deps.player, cfg.AllowedOrigins...)))
	}

	exec := executor.New(schema.Default(), deps.backend, executor.WithSearchLimit(cfg.SearchLimit))
	router := api.NewServer(exec, opts...).Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(15*time.Second),
	)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("music-action-service listening on :%s (backend %s)", cfg.Port, cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func readProgram(path string) (program.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return program.Program{}, err
	}
	defer f.Close()
	return program.Parse(f)
}

func runProgram(c *cli.Context) error {
	p, err := readProgram(c.String("file"))
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}
	deps, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	exec := executor.New(schema.Default(), deps.backend, executor.WithSearchLimit(cfg.SearchLimit))
	rep, err := exec.Run(c.Context, p)
	if rep != nil {
		if perr := printJSON(rep); perr != nil {
			return perr
		}
	}
	return describe(err)
}

func validateProgram(c *cli.Context) error {
	p, err := readProgram(c.String("file"))
	if err != nil {
		return err
	}
	if err := program.Validate(schema.Default(), p); err != nil {
		return describe(err)
	}
	fmt.Printf("ok: %d step(s)\n", len(p.Steps))
	return nil
}

func parseFilter(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: music-action-service filter <expr>", 2)
	}
	expr, err := filter.Parse(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(expr.String())
	for i, group := range expr.Groups() {
		fmt.Printf("  group %d:", i)
		for _, con := range group {
			fmt.Printf(" %s", con)
		}
		fmt.Println()
	}
	return nil
}

func printSchema(*cli.Context) error {
	return printJSON(schema.Default().Describe())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe lists validation problems one per line.
func describe(err error) error {
	var pe interface{ Problems() []string }
	if err == nil || !errors.As(err, &pe) {
		return err
	}
	for _, p := range pe.Problems() {
		fmt.Fprintln(os.Stderr, "  "+p)
	}
	return cli.Exit(err.Error(), 1)
}
