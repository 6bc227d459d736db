package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abelbrown/watchfloor/internal/api"
	"github.com/abelbrown/watchfloor/internal/config"
	"github.com/abelbrown/watchfloor/internal/fetch"
	"github.com/abelbrown/watchfloor/internal/otel"
)

// cliTimeout bounds a single subcommand's backend calls.
const cliTimeout = 30 * time.Second

type feedsCommand struct {
	List feedsListCommand `command:"list" description:"List feed subscriptions"`
	Add  feedsAddCommand  `command:"add" description:"Subscribe to a feed"`
}

type feedsListCommand struct{}

// Execute lists the server's feeds, or the configured RSS feeds in direct
// mode.
func (c *feedsListCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if cfg.DirectMode() {
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tURL")
		for _, f := range cfg.RSS.Feeds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Name, f.Category, f.URL)
		}
		return nil
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	feeds, err := client.ListFeeds(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tACTIVE\tARTICLES\tURL")
	for _, f := range feeds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\n", f.ID, f.Name, f.Category, f.Active, f.ArticleCount, f.URL)
	}
	return nil
}

type feedsAddCommand struct {
	Name     string `long:"name" required:"true" description:"display name"`
	URL      string `long:"url" required:"true" description:"feed URL"`
	Category string `long:"category" description:"category label"`
}

// Execute subscribes on the server, or appends to the config file in
// direct mode. Validation failures print the reason and a suggested fix.
func (c *feedsAddCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := api.FeedInput{
		Name:     strings.TrimSpace(c.Name),
		URL:      strings.TrimSpace(c.URL),
		Category: strings.TrimSpace(c.Category),
	}
	if err := in.Validate(); err != nil {
		return describeValidation(err)
	}

	if cfg.DirectMode() {
		return addLocalFeed(cfg, in)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	feed, err := client.AddFeed(ctx, in)
	if err != nil {
		return describeValidation(err)
	}
	fmt.Printf("Added %s (%s)\n", feed.Name, feed.ID)
	return nil
}

func addLocalFeed(cfg *config.Config, in api.FeedInput) error {
	for _, f := range cfg.RSS.Feeds {
		if f.URL == in.URL {
			return fmt.Errorf("feed %s is already configured as %q", in.URL, f.Name)
		}
	}
	cfg.RSS.Feeds = append(cfg.RSS.Feeds, fetch.Feed{
		Name:     in.Name,
		URL:      in.URL,
		Category: in.Category,
	})

	path := opts.Config
	if path == "" {
		path = config.ConfigPath()
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("Added %s to %s\n", in.Name, path)
	return nil
}

// describeValidation expands a ValidationError into a user-facing message.
func describeValidation(err error) error {
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	if verr.Suggestion != "" {
		return fmt.Errorf("invalid feed: %s\n  did you mean: %s", verr.Reason, verr.Suggestion)
	}
	return fmt.Errorf("invalid feed: %s", verr.Reason)
}

type eventsCommand struct {
	Limit int `short:"n" long:"limit" default:"50" description:"number of events to show"`
}

// Execute prints the most recent events, oldest first.
func (c *eventsCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(cfg.DataDir, otel.EventFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("no events recorded yet")
			return nil
		}
		return err
	}
	defer f.Close()

	events, err := otel.ReadEvents(f, c.Limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Println(formatEvent(e))
	}
	return nil
}

func formatEvent(e otel.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %-16s", e.Time.Local().Format("01-02 15:04:05"), e.Level, e.Kind)
	if e.Comp != "" {
		fmt.Fprintf(&b, " [%s]", e.Comp)
	}
	if e.ArticleID != "" {
		fmt.Fprintf(&b, " article=%s", e.ArticleID)
	}
	if e.Source != "" {
		fmt.Fprintf(&b, " source=%s", e.Source)
	}
	if e.Count > 0 {
		fmt.Fprintf(&b, " count=%d", e.Count)
	}
	if e.DurMs > 0 {
		fmt.Fprintf(&b, " %.0fms", e.DurMs)
	}
	if e.Msg != "" {
		b.WriteString(" " + e.Msg)
	}
	if e.Err != "" {
		b.WriteString(" err=" + e.Err)
	}
	return b.String()
}
