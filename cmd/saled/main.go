package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"tokensale/config"
	"tokensale/native/reserve"
	"tokensale/native/sale"
	"tokensale/native/token"
	"tokensale/observability/logging"
	"tokensale/rpc"
	"tokensale/storage"
)

const envVar = "SALE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	reserveA := flag.String("reserve-a", "", "Initial pay-asset reserve for the manual price source")
	reserveB := flag.String("reserve-b", "", "Initial sale-asset reserve for the manual price source")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("saled", env, logging.Options{
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}
	vault, err := cfg.Vault()
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "journal"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	journal, err := storage.NewJournal(db)
	if err != nil {
		logger.Error("Failed to open audit journal", slog.Any("error", err))
		os.Exit(1)
	}

	payToken := token.NewMemLedger(cfg.PayAsset)
	saleToken := token.NewMemLedger(cfg.SaleAsset)

	pair := reserve.NewManualPair(cfg.PayAsset, cfg.SaleAsset)
	if err := seedReserves(pair, *reserveA, *reserveB); err != nil {
		logger.Error("Invalid reserve override", slog.Any("error", err))
		os.Exit(1)
	}

	engine := sale.NewEngine(admin.Raw(), vault.Raw(), payToken, saleToken, pair, cfg.LockDurationSeconds)
	engine.SetEmitter(journal)

	logger.Info("sale engine ready",
		"admin", admin.String(),
		"vault", vault.String(),
		"payAsset", payToken.Symbol(),
		"saleAsset", saleToken.Symbol(),
		"lockDurationSeconds", cfg.LockDurationSeconds,
	)

	server := rpc.NewServer(engine, journal, pair, rpc.ServerConfig{
		JWTSecret:       cfg.ResolveJWTSecret(),
		RatePerSecond:   cfg.RPCRatePerSecond,
		RateBurst:       cfg.RPCRateBurst,
		MaxRequestBytes: cfg.MaxRequestBytes,
	}, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func seedReserves(pair *reserve.ManualPair, rawA, rawB string) error {
	rawA = strings.TrimSpace(rawA)
	rawB = strings.TrimSpace(rawB)
	if rawA == "" && rawB == "" {
		return nil
	}
	if rawA == "" || rawB == "" {
		return fmt.Errorf("both -reserve-a and -reserve-b are required")
	}
	reserveA, ok := new(big.Int).SetString(rawA, 10)
	if !ok || reserveA.Sign() <= 0 {
		return fmt.Errorf("reserve-a must be a positive base-10 integer")
	}
	reserveB, ok := new(big.Int).SetString(rawB, 10)
	if !ok || reserveB.Sign() <= 0 {
		return fmt.Errorf("reserve-b must be a positive base-10 integer")
	}
	pair.SetReserves(reserveA, reserveB)
	return nil
}
