package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"reqline/internal/app"
	"reqline/internal/config"
	"reqline/internal/logging"
	"reqline/internal/migrate"
	"reqline/internal/server"
)

// vp holds config defaults, REQLINE_* env overrides and the bound flags.
var vp = config.New()

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "reqline CLI",
	Long: `reqline manages requirements as a tree:
project -> epic -> story -> acceptance criterion -> test case, with actors per
project and test sets whose runs record test case outcomes.

Statuses come from a registry that decides which records may be deleted or
edited. Deleting a record removes everything it owns in one transaction.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default <workspace>/"+config.FileName+")")
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("user", "", "name recorded in created_by/updated_by")
	_ = vp.BindPFlag("config", flags.Lookup("config"))
	_ = vp.BindPFlag("database.workspace", flags.Lookup("workspace"))
	_ = vp.BindPFlag("json", flags.Lookup("json"))
	_ = vp.BindPFlag("user", flags.Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(epicCmd())
	rootCmd.AddCommand(storyCmd())
	rootCmd.AddCommand(nextKeyCmd())
	rootCmd.AddCommand(testSetCmd())
}

func loadConfig() (config.Config, error) {
	return config.Load(vp, vp.GetString("config"))
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Engine:    a.Engine,
				BasePath:  cfg.Server.BasePath,
				Log:       log.With().Str("component", "http").Logger(),
				Metrics:   a.Metrics,
				Blob:      a.Blob,
				RateLimit: cfg.Server.RateLimit,
				RateBurst: cfg.Server.RateBurst,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr(), Handler: handler}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", srv.Addr).Str("base_path", cfg.Server.BasePath).Msg("serving reqline API (OpenAPI at " + cfg.Server.BasePath + "/openapi.json, Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				log.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutting down")
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("host", "", "listen host (overrides server.host)")
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	bindChanged(cmd, "host", "server.host")
	bindChanged(cmd, "port", "server.port")
	bindChanged(cmd, "base-path", "server.base_path")
	return cmd
}

// bindChanged binds a local flag so it only overrides the config key when set.
func bindChanged(cmd *cobra.Command, flag, key string) {
	prev := cmd.PreRunE
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			vp.Set(key, f.Value.String())
		}
		if prev != nil {
			return prev(cmd, args)
		}
		return nil
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply migrations and seed statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				version, err := migrate.Version(ctx, a.DB)
				if err != nil {
					return err
				}
				n := len(a.Registry.All())
				return printJSONOrText(map[string]any{
					"driver":         a.Dialect,
					"schema_version": version,
					"statuses":       n,
				}, fmt.Sprintf("workspace ready (%s, schema v%d, %d statuses)", a.Dialect, version, n))
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if c.Blob.S3.SecretAccessKey != "" {
				c.Blob.S3.SecretAccessKey = "********"
			}
			if vp.GetBool("json") {
				return printJSON(c)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(c)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.FileName + " into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(vp.GetString("database.workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

// --- helpers ---

// withApp opens the workspace quietly; only warnings reach stderr.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	if log.GetLevel() < zerolog.WarnLevel {
		log = log.Level(zerolog.WarnLevel)
	}
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func user() string {
	return vp.GetString("user")
}

func printJSONOrText(v any, text string) error {
	if vp.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
