package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"gopkg.in/yaml.v3"

	"github.com/venomqa/venomqa/internal/config"
	"github.com/venomqa/venomqa/internal/metrics"
	"github.com/venomqa/venomqa/pkg/logger"
)

var serveDocs bool
var docsAddr string
var printConfigFormat string

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate an exploration config file",
	Long: `validate-config reads the YAML config an embedding project hands to
World/Agent construction (strategy, budgets, SUT wiring, adapter DSNs),
applies struct-tag and cross-field validation, and reports the result.

With --serve-docs it additionally hosts a generated OpenAPI description of
the registration surface at /docs, plus the explorer's own Prometheus
metrics at /metrics, for teams that want to browse what a config accepts
without reading this package's Go types.`,
	RunE: runValidateConfig,
}

func init() {
	validateConfigCmd.Flags().BoolVar(&serveDocs, "serve-docs", false, "serve an OpenAPI description of the config schema at /docs")
	validateConfigCmd.Flags().StringVar(&docsAddr, "docs-addr", ":8089", "listen address for --serve-docs")
	validateConfigCmd.Flags().StringVar(&printConfigFormat, "print-config", "", "echo the resolved, secret-redacted config after defaults/env merge: json or yaml")
}

func runValidateConfig(c *cobra.Command, args []string) error {
	v := viper.New()
	path := cfgFile
	if path == "" {
		path = "explore.yaml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return &config.Error{Reason: fmt.Sprintf("reading %s", path), Cause: err}
		}
		// Falling through with no file read: Load still applies defaults and
		// validates whatever env-derived values are present, so a
		// fully-env-configured deployment need not ship a YAML file at all.
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	fmt.Printf("config OK: strategy=%s max_steps=%d sut=%s adapters(postgres=%d sqlite=%d redis=%d api_recorder=%d)\n",
		cfg.Explore.Strategy, cfg.Explore.MaxSteps, cfg.SUT.BaseURL,
		len(cfg.Adapters.Postgres), len(cfg.Adapters.SQLite), len(cfg.Adapters.Redis), len(cfg.Adapters.APIRecorder),
	)

	if printConfigFormat != "" {
		if err := printResolvedConfig(cfg, printConfigFormat); err != nil {
			return err
		}
	}

	if !serveDocs {
		return nil
	}
	return serveConfigDocs(c.Context(), cfg, docsAddr)
}

// printResolvedConfig echoes cfg, with secrets redacted by
// config.DefaultConfigSanitizer, in the requested format.
func printResolvedConfig(cfg *config.Config, format string) error {
	sanitized := config.NewDefaultConfigSanitizer().Sanitize(cfg)

	switch format {
	case "json":
		out, err := json.MarshalIndent(sanitized, "", "  ")
		if err != nil {
			return &config.Error{Reason: "marshaling config as json", Cause: err}
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(sanitized)
		if err != nil {
			return &config.Error{Reason: "marshaling config as yaml", Cause: err}
		}
		fmt.Print(string(out))
	default:
		return &config.Error{Reason: fmt.Sprintf("invalid --print-config format %q (supported: json, yaml)", format)}
	}
	return nil
}

func serveConfigDocs(ctx context.Context, cfg *config.Config, addr string) error {
	log := logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}.Build()

	router := mux.NewRouter()
	router.HandleFunc("/docs/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(configOpenAPIDoc(cfg)))
	})
	router.PathPrefix("/docs").Handler(httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
	router.Path("/metrics").Handler(metrics.NewEndpointHandler(nil, 60, 10))

	srv := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	log.Info("serving config docs", "docs", "http://"+addr+"/docs", "metrics", "http://"+addr+"/metrics")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		log.Info("shutting down config docs server")
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// configOpenAPIDoc renders a minimal OpenAPI 3 document describing the
// fields an exploration config accepts, mounted behind the swagger UI.
func configOpenAPIDoc(cfg *config.Config) string {
	return fmt.Sprintf(`{
  "openapi": "3.0.0",
  "info": {"title": "venomqa exploration config", "version": "1.0"},
  "paths": {},
  "components": {
    "schemas": {
      "ExploreConfig": {
        "type": "object",
        "properties": {
          "strategy": {"type": "string", "enum": ["bfs","dfs","random","coverage","weighted","mcts"], "example": %q},
          "max_steps": {"type": "integer", "example": %d},
          "max_depth": {"type": "integer"},
          "coverage_target": {"type": "number"},
          "fail_fast": {"type": "boolean"}
        }
      },
      "SUTConfig": {
        "type": "object",
        "properties": {
          "base_url": {"type": "string", "example": %q},
          "request_timeout": {"type": "string"},
          "rate_limit_per_sec": {"type": "number"}
        }
      }
    }
  }
}`, cfg.Explore.Strategy, cfg.Explore.MaxSteps, cfg.SUT.BaseURL)
}
