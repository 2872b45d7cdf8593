package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/uhyunpark/orderkit/params"
	"github.com/uhyunpark/orderkit/pkg/api"
	"github.com/uhyunpark/orderkit/pkg/gateway"
	"github.com/uhyunpark/orderkit/pkg/storage"
	"github.com/uhyunpark/orderkit/pkg/util"
)

func main() {
	app := &cli.App{
		Name:  "relay",
		Usage: "collect order claims from participants",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "path to a .env file (default: ./.env)"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level", EnvVars: []string{"VERBOSE"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv(c.String("env"))
	if err != nil {
		return err
	}

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.LogFile, c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	d, err := cfg.Deployment()
	if err != nil {
		return err
	}
	store, err := storage.NewPebbleStore(cfg.Relay.ClaimDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// The relay only verifies claims; it never signs or submits.
	gw := gateway.New(d, nil, nil, gateway.WithLogger(sugar))
	srv := api.NewServer(gw, store, cfg.Relay.CORSOrigins, sugar)

	sugar.Infow("relay_starting",
		"actions_gateway", d.ActionsGateway.Hex(),
		"order_gateway", d.OrderGateway.Hex(),
		"unsafe_ledgers", len(d.UnsafeLedgers),
		"claim_db", cfg.Relay.ClaimDBPath)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: cfg.Relay.APIAddr, Handler: srv.Handler()}
	go srv.Hub().Run()
	defer srv.Hub().Stop()

	errc := make(chan error, 1)
	go func() {
		sugar.Infow("relay_listening", "addr", cfg.Relay.APIAddr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sugar.Info("relay_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
