// Command tradeengine runs the trade engine's HTTP API plus its
// background funding and liquidation sweeps.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/spikeycoins/tradeengine/config"
	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database"
	"github.com/spikeycoins/tradeengine/database/drivers/postgres"
	"github.com/spikeycoins/tradeengine/database/drivers/sqlite3"
	"github.com/spikeycoins/tradeengine/engine"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/log"
	"github.com/spikeycoins/tradeengine/oracle"
	"github.com/spikeycoins/tradeengine/transport/httpapi"
)

var subLogger = log.NewSubLogger("MAIN")

func main() {
	app := &cli.App{
		Name:  "tradeengine",
		Usage: "run the gold/silver derivatives exchange core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the process configuration YAML file",
				Value: "config.yaml",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		subLogger.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Logging.Level {
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.SQL.Close()

	overrides, err := cfg.MarketOverrides()
	if err != nil {
		return fmt.Errorf("market overrides: %w", err)
	}
	markets := market.NewTable(overrides)

	oracleClient := oracle.NewHTTPClient(cfg.Oracle.Endpoint, cfg.Oracle.RequestTimeout)
	eng := engine.New(db.SQL, markets, oracleClient, cfg.Pricing.IndexCacheTTL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go runSweeps(ctx, eng, cfg.Oracle.PollInterval)

	server := &http.Server{
		Addr:    cfg.HTTP.BindAddress,
		Handler: httpapi.New(eng).Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			subLogger.Error("shutdown: %v", err)
		}
	}()

	subLogger.Info("listening on %s", cfg.HTTP.BindAddress)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func connectDatabase(cfg config.DatabaseConfig) (*database.Instance, error) {
	dbCfg := cfg.ToDatabaseConfig()
	if err := database.DB.SetConfig(dbCfg); err != nil {
		return nil, err
	}

	switch dbCfg.Driver {
	case database.DBPostgreSQL:
		return postgres.Connect(dbCfg)
	case database.DBSQLite3, database.DBSQLite:
		return sqlite3.Connect(dbCfg.ConnectionDetails.Database)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
}

// runSweeps periodically distributes funding and checks liquidations
// on every tradeable futures contract until ctx is cancelled.
func runSweeps(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, eng)
		}
	}
}

func sweepOnce(ctx context.Context, eng *engine.Engine) {
	for _, pair := range currency.AllPairs() {
		if !pair.IsFutures() {
			continue
		}
		if err := eng.DistributeFunding(ctx, pair); err != nil {
			subLogger.Error("distribute funding %s: %v", pair, err)
		}
		if _, err := eng.CheckLiquidations(ctx, pair); err != nil {
			subLogger.Error("check liquidations %s: %v", pair, err)
		}
	}
}
