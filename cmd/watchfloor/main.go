package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"

	"github.com/abelbrown/watchfloor/internal/api"
	"github.com/abelbrown/watchfloor/internal/config"
	"github.com/abelbrown/watchfloor/internal/enrich"
	"github.com/abelbrown/watchfloor/internal/fetch"
	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/metrics"
	"github.com/abelbrown/watchfloor/internal/otel"
	"github.com/abelbrown/watchfloor/internal/session"
	"github.com/abelbrown/watchfloor/internal/store"
	"github.com/abelbrown/watchfloor/internal/ui"
)

// options are the global flags. Subcommands read them after parsing.
type options struct {
	Config string `short:"c" long:"config" env:"WATCHFLOOR_CONFIG" description:"path to config.yaml (default ~/.watchfloor/config.yaml)"`

	Feeds  feedsCommand  `command:"feeds" description:"List or add feed subscriptions"`
	Events eventsCommand `command:"events" description:"Print the tail of the event log"`
}

var opts options

func main() {
	// Subcommands log to stderr; the TUI switches to the log file.
	logging.InitWriter(os.Stderr, "warn")

	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	// flags.Default prints parse and subcommand errors itself.
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	// A subcommand already ran.
	if parser.Active != nil {
		return
	}

	if err := runTUI(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := opts.Config
	if path == "" {
		path = config.ConfigPath()
	}
	return config.Load(path)
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Init(cfg.DataDir, cfg.Log.Level); err != nil {
		return err
	}
	defer logging.Close()

	events, err := otel.OpenFile(cfg.DataDir)
	if err != nil {
		logging.Warn("event log disabled", "error", err)
		events = otel.NewNullLogger()
	}
	defer events.Close()

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	sessOpts := session.Options{
		Prefs:           st,
		Events:          events,
		RefreshInterval: cfg.Refresh.Interval,
		AutoRefresh:     cfg.Refresh.Auto,
		AutoTriage:      cfg.Session.AutoTriage,
	}

	mode := "api"
	if cfg.DirectMode() {
		mode = "rss"
		sessOpts.Fetcher = fetch.NewRSSFetcher(cfg.RSS.Feeds, st, cfg.RSS.MaxPerFeed, events)
		sessOpts.Status = st
	} else {
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		sessOpts.Fetcher = fetch.NewAPIFetcher(client, cfg.API.ArticleLimit, events)
		sessOpts.Status = client
		sessOpts.Enricher = client
		sessOpts.Extract = &enrich.ExtractOptions{UseAI: cfg.API.ExtractUseAI, Save: cfg.API.ExtractSave}
	}

	sess, err := session.New(sessOpts)
	if err != nil {
		return err
	}
	defer sess.Close()

	logging.Info("watchfloor starting", "mode", mode, "data_dir", cfg.DataDir)
	events.Emit(otel.Event{Kind: otel.KindStartup, Comp: "main", Msg: mode})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	eventsPath := filepath.Join(cfg.DataDir, otel.EventFileName)
	app := ui.NewApp(ui.SessionCommands(ctx, sess, eventsPath))
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	sess.OnChange(func() { program.Send(ui.FeedChanged{}) })
	sess.OnNotice(func(n session.Notice) { program.Send(ui.NoticeMsg{Notice: n}) })

	if err := sess.Start(ctx); err != nil {
		return err
	}

	_, err = program.Run()
	events.Emit(otel.Event{Kind: otel.KindShutdown, Comp: "main"})
	logging.Info("watchfloor stopped")
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newClient(cfg *config.Config) (*api.Client, error) {
	return api.New(api.Config{
		BaseURL: cfg.API.URL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Rate:    cfg.API.Rate,
		Burst:   cfg.API.Burst,
	})
}

// serveMetrics exposes the prometheus registry on addr until shut down.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logging.Info("metrics listening", "addr", addr)
	return srv
}
