package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizflow/internal/analytics"
	"quizflow/internal/app"
	"quizflow/internal/fallback"
	"quizflow/internal/gateway"
	"quizflow/internal/model"
	"quizflow/internal/simulate"
	"quizflow/internal/wizard"
)

type simulateOptions struct {
	api         string
	quizID      string
	answers     []string
	sessions    int
	parallel    int
	fallbackDB  string
	source      string
	utmSource   string
	utmCampaign string
	sessionWait time.Duration
	timeout     time.Duration
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	so := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run scripted quiz sessions through the real engine",
		Example: `  quizflow simulate --api http://localhost:8080/api/quiz \
    -a user-type=professional -a brand-selection=fowler -a org-type=railway \
    -a fleet-size=2 -a "services-needed=boiler-inspection|parts" -a timeline=asap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, so)
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.api, "api", "", "Quiz API base including the flow prefix (default: gateway.base_url)")
	f.StringVarP(&so.quizID, "quiz", "q", "quiz-v2", "Quiz identifier")
	f.StringArrayVarP(&so.answers, "answer", "a", nil, "Scripted answer question=value, multi-choice values split on |")
	f.IntVarP(&so.sessions, "sessions", "n", 1, "Number of sessions to run")
	f.IntVar(&so.parallel, "parallel", 4, "Sessions running at once")
	f.StringVar(&so.fallbackDB, "fallback-db", "", "SQLite file for the local snapshot (default: fallback.path)")
	f.StringVar(&so.source, "source", "simulate", "Session source")
	f.StringVar(&so.utmSource, "utm-source", "", "utm_source to attach")
	f.StringVar(&so.utmCampaign, "utm-campaign", "", "utm_campaign to attach")
	f.DurationVar(&so.sessionWait, "session-wait", 5*time.Second, "How long to wait for the backend session before answering")
	f.DurationVar(&so.timeout, "timeout", 60*time.Second, "Per-session timeout")
	return cmd
}

func runSimulate(cmd *cobra.Command, opts *rootOptions, so *simulateOptions) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	script, err := simulate.ParseScript(so.answers)
	if err != nil {
		return err
	}
	reg, err := app.LoadCatalogs(cfg.Catalog.Dir)
	if err != nil {
		return err
	}
	cat, err := reg.Get(so.quizID)
	if err != nil {
		return err
	}

	gwCfg := cfg.Gateway
	if so.api != "" {
		gwCfg.BaseURL = so.api
	}
	client := gateway.NewClient(gwCfg, log)

	dbPath := cfg.Fallback.Path
	if so.fallbackDB != "" {
		dbPath = so.fallbackDB
	}
	store, err := fallback.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open fallback store: %w", err)
	}
	defer store.Close()

	if so.sessions < 1 {
		so.sessions = 1
	}
	results := make([]*simulate.Result, so.sessions)
	var mu sync.Mutex
	counts := map[string]int{}
	sink := analytics.Multi{
		analytics.NewLogSink(log),
		analytics.SinkFunc(func(name string, _ map[string]any) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}),
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(so.parallel, 1))
	for i := range results {
		g.Go(func() error {
			res, err := simulate.Run(ctx, cat, wizard.Options{
				Gateway:   client,
				Store:     store,
				Analytics: sink,
				Logger:    log.With(zap.Int("run", i)),
				Timings:   cfg.Wizard,
				Source:    so.source,
				UTM:       model.UTMParams{Source: so.utmSource, Campaign: so.utmCampaign},
				Device:    model.DeviceInfo{UserAgent: "quizflow-simulate", Platform: "cli"},
			}, script, simulate.Config{SessionWait: so.sessionWait, Timeout: so.timeout})
			if err != nil {
				return fmt.Errorf("session %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.format == "text" {
		out := cmd.OutOrStdout()
		for i, r := range results {
			fmt.Fprintf(out, "%d. %s degraded=%t questions=%d elapsed=%s\n",
				i+1, r.Outcome.RedirectURL, r.Outcome.Degraded, len(r.Questions), r.Elapsed.Round(time.Millisecond))
		}
		return nil
	}
	return writeJSON(cmd, struct {
		QuizID string             `json:"quizId"`
		Runs   []*simulate.Result `json:"runs"`
		Events map[string]int     `json:"events"`
	}{QuizID: cat.ID(), Runs: results, Events: counts})
}
