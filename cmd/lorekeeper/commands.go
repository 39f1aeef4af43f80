package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lorekeeper/internal/domain"
	"lorekeeper/internal/usecase/routing"
)

const commandTimeout = 10 * time.Second

func dispatch(a *app, command string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch command {
	case "status":
		return cmdStatus(ctx, a)
	case "models":
		return cmdModels(ctx, a)
	case "rules":
		return cmdRules(ctx, a)
	case "set-tier":
		if len(args) < 2 {
			return fmt.Errorf("usage: set-tier MODEL_ID TIER")
		}
		return a.routing.SetTier(ctx, args[0], args[1])
	case "rediscover":
		return cmdRediscover(ctx, a)
	case "test":
		if len(args) < 1 {
			return fmt.Errorf("usage: test PROMPT [--tools]")
		}
		tools := len(args) > 1 && args[1] == "--tools"
		return cmdTest(ctx, a, args[0], tools)
	case "reset":
		return a.routing.Reset(ctx)
	case "health":
		return cmdHealth(a)
	case "health-reset":
		model := ""
		if len(args) > 0 {
			model = args[0]
		}
		a.routing.ResetHealth(model)
		return nil
	case "watch":
		return cmdWatch(a)
	case "know":
		return dispatchKnow(ctx, a, args)
	default:
		return fmt.Errorf("unknown command %q (run 'lorekeeper help')", command)
	}
}

func cmdStatus(ctx context.Context, a *app) error {
	// Seed on demand so status works before the gateway's first start.
	if err := a.routing.EnsureContext(ctx); err != nil {
		return err
	}
	st, err := a.routing.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("agent:      %s (v%d)\n", st.AgentID, st.Version)
	for _, tier := range []domain.Tier{domain.TierFast, domain.TierMid, domain.TierHeavy} {
		fmt.Printf("%-11s %d active\n", tier+":", st.ActiveByTier[tier])
	}
	fmt.Printf("inactive:   %d\n", st.InactiveCount)
	fmt.Printf("rules:      %d\n", st.RuleCount)
	fmt.Printf("hash:       %s\n", st.ModelsHash)
	fmt.Printf("updated:    %s\n", st.UpdatedAt.Format(time.RFC3339))
	return nil
}

func cmdModels(ctx context.Context, a *app) error {
	models, err := a.routing.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		state := "active"
		if !m.IsActive() {
			state = "inactive"
		}
		tools := ""
		if m.Capabilities.Tools {
			tools = " tools"
		}
		fmt.Printf("%-40s %-6s %s%s\n", m.ID, m.Tier, state, tools)
	}
	return nil
}

func cmdRules(ctx context.Context, a *app) error {
	rules, err := a.routing.Rules(ctx)
	if err != nil {
		return err
	}
	for _, r := range rules {
		fmt.Printf("%-12s tools=%-5t → %-6s priority=%d", r.If, r.ToolsInContext, r.Then, r.Priority)
		if r.Reason != "" {
			fmt.Printf("  (%s)", r.Reason)
		}
		fmt.Println()
	}
	return nil
}

func cmdRediscover(ctx context.Context, a *app) error {
	changed, err := a.routing.Rediscover(ctx)
	if err != nil {
		return err
	}
	if changed {
		fmt.Println("model roster updated")
	} else {
		fmt.Println("no roster changes")
	}
	return nil
}

func cmdTest(ctx context.Context, a *app, prompt string, tools bool) error {
	cls, err := a.routing.TestClassify(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Printf("category:   %s\ncomplexity: %d\nindicators: %s\n",
		cls.Category, cls.Complexity, strings.Join(cls.MatchedIndicators, ", "))

	d, err := a.routing.TestResolve(ctx, prompt, tools)
	if err != nil {
		return err
	}
	if d.Override {
		fmt.Printf("override:   %s/%s (tier %s)\nreason:     %s\n", d.Provider, d.Model, d.Tier, d.Reason)
	} else {
		fmt.Printf("override:   none\nreason:     %s\n", d.Reason)
	}
	return nil
}

func cmdHealth(a *app) error {
	snap := a.routing.HealthSnapshot()
	if len(snap) == 0 {
		fmt.Println("no health history recorded")
		return nil
	}
	for _, h := range snap {
		fmt.Printf("%-40s %-9s failures=%d\n", h.ModelID, h.State, h.ConsecutiveFailures)
	}
	return nil
}

// cmdWatch runs scheduled model re-discovery until interrupted. Used when
// the plugin is deployed alongside the gateway rather than embedded in it.
func cmdWatch(a *app) error {
	spec := a.cfg.Discovery.RediscoverCron
	if spec == "" {
		return fmt.Errorf("discovery.rediscover_cron is not configured")
	}
	if err := a.routing.EnsureContext(context.Background()); err != nil {
		return err
	}
	m, err := routing.StartMaintenance(a.routing, spec)
	if err != nil {
		return err
	}
	defer m.Stop()

	fmt.Printf("watching: re-discovery on %q (ctrl-c to stop)\n", spec)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

func dispatchKnow(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: know add|list|search|inject ...")
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: know add CONTENT [TAG...]")
		}
		f, err := a.knowledge.AddFact(ctx, args[1], args[2:])
		if err != nil {
			return err
		}
		fmt.Printf("stored fact %s\n", f.ID)
		return nil
	case "list":
		facts, err := a.knowledge.ListFacts(ctx, 50)
		if err != nil {
			return err
		}
		for _, f := range facts {
			fmt.Printf("%s  %s\n", f.ID, f.Content)
		}
		return nil
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("usage: know search QUERY")
		}
		facts, err := a.knowledge.SearchFacts(ctx, args[1], 50)
		if err != nil {
			return err
		}
		for _, f := range facts {
			fmt.Printf("%s  %s\n", f.ID, f.Content)
		}
		return nil
	case "inject":
		if len(args) < 2 {
			return fmt.Errorf("usage: know inject PROMPT")
		}
		fmt.Println(a.knowledge.Inject(ctx, args[1]))
		return nil
	default:
		return fmt.Errorf("unknown know subcommand %q", args[0])
	}
}
