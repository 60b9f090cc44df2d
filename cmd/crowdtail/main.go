// Command crowdtail follows the crowdsense event stream and logs each event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
	"github.com/your-org/crowdsense/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty for env and defaults only)")
	types := flag.String("types", "", "comma separated event kinds to follow (default all)")
	name := flag.String("name", "crowdtail", "durable consumer name")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.NATS.URL == "" {
		slog.Error("nats.url is not configured")
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = consumer.ConsumeEvents(ctx, *name, splitKinds(*types), func(_ context.Context, msg queue.Message) error {
		slog.Info(msg.Type, describe(msg)...)
		return nil
	})
	if err != nil {
		slog.Error("start event consumer", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("crowdtail stopped")
}

func splitKinds(raw string) []string {
	var kinds []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// describe turns an event into slog attributes.
func describe(msg queue.Message) []any {
	attrs := []any{"id", msg.ID, "at", msg.Timestamp}

	switch msg.Type {
	case models.EventCountUpdate:
		var c models.CrowdCount
		if err := json.Unmarshal(msg.Data, &c); err == nil {
			return append(attrs, "total", c.Total, "male", c.Male, "female", c.Female)
		}
	case models.EventShowAd:
		var ad models.AdRecord
		if err := json.Unmarshal(msg.Data, &ad); err == nil {
			return append(attrs, "ad_id", ad.ID, "audience", ad.Audience, "name", ad.DisplayName)
		}
	case models.EventAnalyticsUpdate:
		var stats models.CrowdStats
		if err := json.Unmarshal(msg.Data, &stats); err == nil {
			return append(attrs, "frames", stats.FramesAnalyzed, "peak", stats.PeakCount)
		}
	}
	return append(attrs, "bytes", len(msg.Data))
}
