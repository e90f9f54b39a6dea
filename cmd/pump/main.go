// Command pump runs a Service described by a YAML ServiceConfig: it
// builds every configured connection, lookup and pipeline, starts them in
// the order service.Service.Start enforces, and stops cleanly on SIGINT/
// SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/connection"
	"github.com/streampump/pumpcore/pkg/constants"
	"github.com/streampump/pumpcore/pkg/lookup"
	"github.com/streampump/pumpcore/pkg/pipeline"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/service"
	"github.com/streampump/pumpcore/pkg/source"

	// Connectors and lookups self-register into the source/processor/
	// connection/lookup registries via init().
	_ "github.com/streampump/pumpcore/pkg/connectors/cdc"
	_ "github.com/streampump/pumpcore/pkg/connectors/console"
	_ "github.com/streampump/pumpcore/pkg/connectors/elasticsearch"
	_ "github.com/streampump/pumpcore/pkg/connectors/file"
	_ "github.com/streampump/pumpcore/pkg/connectors/http"
	_ "github.com/streampump/pumpcore/pkg/connectors/kafka"
	_ "github.com/streampump/pumpcore/pkg/connectors/mongo"
	_ "github.com/streampump/pumpcore/pkg/connectors/redis"
	_ "github.com/streampump/pumpcore/pkg/connectors/sql"
	_ "github.com/streampump/pumpcore/pkg/filter"
	_ "github.com/streampump/pumpcore/pkg/lookups"
	_ "github.com/streampump/pumpcore/pkg/schema"
)

var version = "dev"

func main() {
	configPath := flag.String("c", "", "service config file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("pumpcore", version)
		return
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: pump -c <config.yaml>")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	app := pump.NewApplication(logger)
	svc := service.New(app)

	if err := buildService(app, svc, cfg); err != nil {
		logger.Error("build service", "error", err)
		os.Exit(1)
	}

	loop := app.Run()
	if err := svc.Start(loop); err != nil {
		logger.Error("start service", "error", err)
		os.Exit(1)
	}
	logger.Info("pump started", "run_id", app.RunID, "pipelines", len(cfg.Pipelines))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	app.Shutdown()
}

// buildService resolves every connection, lookup and pipeline stage
// named in cfg against the type registries and registers the built
// objects with svc.
func buildService(app *pump.Application, svc *service.Service, cfg *config.ServiceConfig) error {
	for _, cc := range cfg.Connections {
		conn, err := connection.New(app, cc.Type, cc.Id, cc.Options)
		if err != nil {
			return err
		}
		if err := svc.AddConnection(conn); err != nil {
			return err
		}
		app.RegisterConnection(cc.Id, conn)
	}

	for _, lc := range cfg.Lookups {
		lk, err := lookup.New(app, lc.Type, lc.Id, lc.Options)
		if err != nil {
			return err
		}
		if err := svc.AddLookup(lk); err != nil {
			return err
		}
	}

	for _, pc := range cfg.Pipelines {
		p := pipeline.New(app, pc.Id)

		stages := make([]pump.Stage, 0, len(pc.Processors))
		for _, sc := range pc.Processors {
			stage, err := processor.New(app, sc.Type, sc.Id, sc.Options)
			if err != nil {
				return err
			}
			stages = append(stages, stage)
		}

		sources := make([]source.Source, 0, len(pc.Sources))
		for _, sc := range pc.Sources {
			src, err := source.New(app, sc.Type, sc.Id, p, sc.Options)
			if err != nil {
				return err
			}
			sources = append(sources, src)
		}

		if err := p.Build(sources, stages...); err != nil {
			return err
		}
		if err := svc.AddPipeline(p); err != nil {
			return err
		}
	}
	return nil
}
