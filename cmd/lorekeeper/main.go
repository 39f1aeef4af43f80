package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lorekeeper/internal/adapter/store"
	"lorekeeper/internal/domain"
	"lorekeeper/internal/infra/config"
	"lorekeeper/internal/infra/logger"
	"lorekeeper/internal/infra/tracer"
	"lorekeeper/internal/usecase/knowledge"
	"lorekeeper/internal/usecase/routing"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "--help", "-h", "help":
		showUsage()
		return
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// app bundles the wired services for command handlers.
type app struct {
	cfg       *config.Config
	routing   *routing.Service
	knowledge *knowledge.Service
	close     func()
}

func run(command string, args []string) error {
	configPath := os.Getenv("LOREKEEPER_CONFIG")
	if configPath == "" {
		configPath = "./lorekeeper.yaml"
	}
	// A leading --config PATH applies to every command.
	if len(args) >= 2 && args[0] == "--config" {
		configPath = args[1]
		args = args[2:]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}

	shutdownTracer, err := tracer.Setup(context.Background(), cfg.Tracer)
	if err != nil {
		closeLog()
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		closeLog()
		return err
	}

	a := &app{
		cfg: cfg,
		routing: routing.NewService(db, routing.Options{
			AgentID:      cfg.AgentID,
			Enabled:      cfg.Routing.Enabled,
			CacheTTL:     msDuration(cfg.Routing.CacheTTLMs),
			StoreTimeout: msDuration(cfg.Routing.StoreTimeoutMs),
			Breaker: routing.BreakerConfig{
				FailureThreshold: cfg.Routing.Breaker.FailureThreshold,
				Cooldown:         msDuration(cfg.Routing.Breaker.CooldownMs),
				Window:           msDuration(cfg.Routing.Breaker.WindowMs),
			},
			Gateway:    gatewaySnapshot(cfg),
			Heuristics: routing.DefaultTierHeuristics(),
			Logger:     log,
		}),
		knowledge: knowledge.NewService(db, cfg.Knowledge.MaxFacts, cfg.Knowledge.MaxSkills, log),
		close: func() {
			db.Close()
			shutdownTracer(context.Background())
			closeLog()
		},
	}
	defer a.close()

	return dispatch(a, command, args)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// gatewaySnapshot adapts the config's discovery section to the read-only
// snapshot model discovery consumes.
func gatewaySnapshot(cfg *config.Config) domain.GatewayConfig {
	return domain.GatewayConfig{
		PrimaryModel:   cfg.Discovery.PrimaryModel,
		FallbackModels: cfg.Discovery.FallbackModels,
		CLIBackends:    cfg.Discovery.CLIBackends,
	}
}

func showUsage() {
	fmt.Println(`lorekeeper - knowledge and model-routing plugin for an AI-agent gateway

USAGE:
    lorekeeper COMMAND [--config PATH] [ARGS]

ROUTING COMMANDS:
    status                    Routing context summary (models by tier, rules)
    models                    List the model roster
    rules                     List routing rules
    set-tier MODEL_ID TIER    Reassign a model to fast, mid, or heavy
    rediscover                Re-run model discovery and merge the roster
    test PROMPT [--tools]     Dry-run classification and resolution
    reset                     Delete the routing context (re-seeds on next start)
    health                    Per-model circuit state and failure counts
    health-reset [MODEL_ID]   Clear health state for one model or all
    watch                     Run scheduled re-discovery until interrupted

KNOWLEDGE COMMANDS:
    know add CONTENT [TAG...]     Store a fact
    know list                     List stored facts
    know search QUERY             Search facts
    know inject PROMPT            Show the context block for a prompt

CONFIGURATION:
    Config file: ./lorekeeper.yaml (or LOREKEEPER_CONFIG)
    Environment: LOREKEEPER_* variables override config`)
}
