package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/config"
	"github.com/l1jgo/login/internal/gameserver"
	"github.com/l1jgo/login/internal/handler"
	"github.com/l1jgo/login/internal/metrics"
	gonet "github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"github.com/l1jgo/login/internal/persist"
	"github.com/l1jgo/login/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             logind  v0.1.0                \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      login arbitration & sessions         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/logind.toml"
	if p := os.Getenv("LOGIND_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	// 4. Repositories and the ban tracker
	printSection("auth core")

	accountRepo := persist.NewAccountRepo(db)
	banRepo := persist.NewBanRepo(db)

	banTracker := auth.NewBanTracker(cfg.Login.AttemptsBeforeBan, cfg.Login.BanDuration, log)
	banTracker.OnBan = func(address string, expiry time.Time, permanent bool) {
		wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer wcancel()
		var exp *time.Time
		if !permanent {
			exp = &expiry
		}
		if err := banRepo.Upsert(wctx, address, exp); err != nil {
			log.Warn("persist address ban failed", zap.String("address", address), zap.Error(err))
		}
	}
	banTracker.OnUnban = func(address string) {
		wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer wcancel()
		if err := banRepo.Delete(wctx, address); err != nil {
			log.Warn("delete address ban failed", zap.String("address", address), zap.Error(err))
		}
	}

	storedBans, err := banRepo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load address bans: %w", err)
	}
	// Preload without write-through; the rows are already durable.
	preloadBans(banTracker, storedBans)
	printStat("stored address bans", len(storedBans))

	// 5. Key material pool
	keys, err := auth.NewKeyCache(cfg.Login.KeyPairPoolSize)
	if err != nil {
		return fmt.Errorf("key cache: %w", err)
	}
	printStat("cached RSA key pairs", keys.PoolSize())

	// 6. Game server table
	defs, err := gameserver.LoadDefinitions(cfg.GameServer.DefinitionsPath)
	if err != nil {
		return fmt.Errorf("load server definitions: %w", err)
	}
	gsTable := gameserver.NewTable(defs, cfg.GameServer.SharedKey, log)
	printStat("game server definitions", len(defs))

	// 7. Credential store and controller
	creds := auth.NewCredentialStore(accountRepo, banTracker, cfg.Login.AutoCreateAccounts, log)
	controller := auth.NewController(creds, accountRepo, gsTable, log)
	gsTable.SetKeyValidator(controller)

	// 8. Lua policy hooks
	luaEngine, err := scripting.NewEngine("scripts", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("policy scripts loaded")
	fmt.Println()

	// 9. Metrics
	m := metrics.New(controller.SessionCount, banTracker.BanCount, gsTable.LinkCount)
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(cfg.Metrics.BindAddress, mux); err != nil {
				log.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	// 10. Packet registry and handlers
	registry := packet.NewRegistry(log)
	deps := &handler.Deps{
		Controller: controller,
		Bans:       banTracker,
		Servers:    gsTable,
		Scripting:  luaEngine,
		Metrics:    m,
		Config:     cfg,
		Log:        log,
	}
	handler.RegisterAll(registry, deps)

	// 11. Listeners
	printSection("listeners")

	onClose := func(s *gonet.Session) {
		// Synchronous deregistration on teardown; only removes the entry
		// if this session still owns it.
		if controller.RemoveClient(s.Account(), s) {
			log.Info("session deregistered",
				zap.String("account", s.Account()),
				zap.Uint64("session", s.ID),
			)
		}
	}

	sessCfg := gonet.SessionConfig{
		OutQueueSize:     cfg.Network.OutQueueSize,
		PacketsPerSecond: cfg.Network.PacketsPerSecond,
		WriteTimeout:     cfg.Network.WriteTimeout,
	}
	clientServer, err := gonet.NewServer(cfg.Network.BindAddress, sessCfg, registry, keys, banTracker.IsBanned, onClose, log)
	if err != nil {
		return fmt.Errorf("client listener: %w", err)
	}
	go clientServer.AcceptLoop()
	printReady(fmt.Sprintf("clients on %s", clientServer.Addr()))

	gsListener, err := gameserver.NewListener(cfg.GameServer.BindAddress, gsTable, log)
	if err != nil {
		return fmt.Errorf("gameserver listener: %w", err)
	}
	go gsListener.AcceptLoop()
	printReady(fmt.Sprintf("game server links on %s", gsListener.Addr()))

	// 12. Background tasks: idle reaper + ban sweep
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	reaper := auth.NewReaper(controller, cfg.Login.IdleTimeout, log)
	go reaper.Run(bgCtx)
	printReady(fmt.Sprintf("idle reaper (timeout: %s)", cfg.Login.IdleTimeout))

	if cfg.Login.BanSweepInterval > 0 {
		go banTracker.Sweep(bgCtx, cfg.Login.BanSweepInterval)
	}
	fmt.Println()

	// 13. Wait for shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	bgCancel()
	clientServer.Shutdown()
	gsListener.Shutdown()
	log.Info("login server stopped")
	return nil
}

// preloadBans feeds durable rows into the tracker with the hooks detached,
// so the boot load does not rewrite its own rows.
func preloadBans(t *auth.BanTracker, rows []persist.BanRow) {
	onBan := t.OnBan
	t.OnBan = nil
	for _, row := range rows {
		if row.ExpiresAt == nil {
			t.Ban(row.Address, 0)
		} else if remaining := time.Until(*row.ExpiresAt); remaining > 0 {
			t.Ban(row.Address, remaining)
		}
	}
	t.OnBan = onBan
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
