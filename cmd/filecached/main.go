// Command filecached wires the cache core's components together and runs
// the Janitor loop. It deliberately stops short of HTTP request routing
// and client authentication, per spec.md §1's explicit out-of-scope list.
//
// The command surface follows the teacher's cmd/ convention of a single
// cobra.Command root with pflag-backed persistent flags (see
// cmd/serve's flag registration pattern).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mare-synchronos/filecached/clock"
	"github.com/mare-synchronos/filecached/coalesce"
	"github.com/mare-synchronos/filecached/config"
	"github.com/mare-synchronos/filecached/filecache"
	"github.com/mare-synchronos/filecached/janitor"
	"github.com/mare-synchronos/filecached/logging"
	"github.com/mare-synchronos/filecached/metadatastore"
	"github.com/mare-synchronos/filecached/metrics"
	"github.com/mare-synchronos/filecached/peer"
	"github.com/mare-synchronos/filecached/tokenprovider"
)

var log = logging.New("filecached")

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "filecached",
		Short: "Content-addressed two-tier file cache with peer pull-through and janitor GC",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/filecached/filecached.yaml", "path to the YAML config file")

	if err := root.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	clk := clock.New()
	coordinator := coalesce.New()
	metadataPath := cfg.CacheDirectory + "/filecached-metadata.db"
	store, err := metadatastore.OpenBolt(metadataPath)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}

	sink := metrics.Sink(metrics.NewPrometheus(prometheus.DefaultRegisterer))

	// provider is wired here so a request-routing layer has a fully built
	// CachedFileProvider to call into; serving it over HTTP is the
	// out-of-scope external collaborator named in spec.md §1.
	provider := buildProvider(cfg, coordinator, sink, clk)
	_ = provider

	gc := buildJanitor(cfg, store, sink, coordinator, clk)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("starting filecached (cold storage enabled: %v, peer configured: %v)", cfg.UseColdStorage, cfg.HasPeer())
	gc.Run(ctx)
	log.Infof("shutting down")
	return nil
}

func buildProvider(cfg config.Config, coordinator *coalesce.Coordinator, sink metrics.Sink, clk clock.Clock) *filecache.Provider {
	var fetcher filecache.Fetcher
	if cfg.HasPeer() {
		opts := []peer.Option{
			peer.WithForceHTTP2(cfg.DistributionFileServerForceHTTP2),
		}
		if cfg.DistributionRequestsPerSecond > 0 {
			opts = append(opts, peer.WithRateLimit(cfg.DistributionRequestsPerSecond))
		}
		f, err := peer.New(cfg.DistributionFileServerAddress, cfg.DistributionRoute, tokenprovider.Static(cfg.DistributionBearerToken), opts...)
		if err != nil {
			log.Errorf("peer fetcher disabled, construction failed: %v", err)
		} else {
			fetcher = f
		}
	}

	return filecache.New(filecache.Config{
		HotRoot:  cfg.CacheDirectory,
		ColdRoot: cfg.ColdStorageDirectory,
		UseCold:  cfg.UseColdStorage,
	}, fetcher, coordinator, sink, nil, clk)
}

func buildJanitor(cfg config.Config, store metadatastore.Store, sink metrics.Sink, active janitor.ActiveTransfers, clk clock.Clock) *janitor.Janitor {
	return janitor.New(janitor.Config{
		HotRoot:                cfg.CacheDirectory,
		ColdRoot:               cfg.ColdStorageDirectory,
		UseCold:                cfg.UseColdStorage,
		HotRetentionDays:       cfg.UnusedFileRetentionPeriodInDays,
		ColdRetentionDays:      cfg.ColdStorageUnusedFileRetentionPeriodInDays,
		HotForcedHours:         cfg.ForcedDeletionOfFilesAfterHours,
		HotSizeCapBytes:        cfg.CacheSizeHardLimitBytes(),
		ColdSizeCapBytes:       cfg.ColdStorageSizeHardLimitBytes(),
		CleanupIntervalMinutes: cfg.CleanupCheckInMinutes,
	}, store, sink, active, clk)
}
