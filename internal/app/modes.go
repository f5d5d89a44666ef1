package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadbot/internal/feed"
	"github.com/alanyoungcy/spreadbot/internal/pairs"
	"github.com/alanyoungcy/spreadbot/internal/platform/dexscreener"
	"github.com/alanyoungcy/spreadbot/internal/platform/mexc"
	"github.com/alanyoungcy/spreadbot/internal/scanner"
	"github.com/alanyoungcy/spreadbot/internal/tracker"
	"github.com/alanyoungcy/spreadbot/internal/validate"
)

const (
	// feedWarmup gives the ticker stream a moment to populate before the
	// first scan cycle runs against an empty snapshot.
	feedWarmup = 3 * time.Second

	// depositRefreshInterval controls how often the spot deposit/withdraw
	// status cache is refreshed.
	depositRefreshInterval = 30 * time.Minute
)

// platform bundles the per-mode pipeline components built on top of the
// wired Dependencies.
type platform struct {
	exchange *mexc.Client
	feed     *feed.PriceFeed
	dex      *dexscreener.Client
	scanner  *scanner.Scanner
	tracker  *tracker.Tracker
}

// buildPlatform constructs the exchange clients, price feed, catalog,
// scanner, and tracker from the configuration and wired dependencies.
func (a *App) buildPlatform(deps *Dependencies) *platform {
	exchange := mexc.NewClient(a.cfg.Mexc.ContractHost, a.cfg.Mexc.SpotHost)
	stream := mexc.NewWSClient(a.cfg.Mexc.WsURL)
	priceFeed := feed.NewPriceFeed(stream, a.logger)

	dex := dexscreener.NewClient(
		a.cfg.DexScreener.BaseURL,
		deps.QuoteCache,
		a.cfg.DexScreener.BatchSize,
		a.cfg.DexScreener.SearchCacheTTL.Duration,
	)

	validator := validate.NewTokenValidator(a.cfg.Validator, a.cfg.Scanner.TotalFeesPercent, a.logger)
	catalog := pairs.NewCatalog(dex, validator, a.cfg.Discovery, a.cfg.Scanner, a.logger)

	return &platform{
		exchange: exchange,
		feed:     priceFeed,
		dex:      dex,
		scanner: scanner.New(
			a.cfg.Scanner, priceFeed, exchange, dex, catalog, validator,
			deps.SignalStore, deps.HistoryStore, a.logger,
		),
		tracker: tracker.New(
			a.cfg.Tracker, priceFeed, exchange, dex, deps.SignalStore, a.logger,
		),
	}
}

// ScanMode runs detection only: the price feed, the scan loop, and the
// deposit status refresher.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	p := a.buildPlatform(deps)
	if err := a.startFeed(ctx, p); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runScanLoop(ctx, p, deps, true) })
	g.Go(func() error { return a.runDepositRefresh(ctx, p) })
	return g.Wait()
}

// TrackMode runs closure tracking only.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting track mode")

	p := a.buildPlatform(deps)
	if err := a.startFeed(ctx, p); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runTrackLoop(ctx, p, deps, true) })
	return g.Wait()
}

// MonitorMode runs the full pipeline on in-memory stores without sending
// notifications. Useful for threshold tuning against live markets.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	p := a.buildPlatform(deps)
	if err := a.startFeed(ctx, p); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runScanLoop(ctx, p, deps, false) })
	g.Go(func() error { return a.runTrackLoop(ctx, p, deps, false) })
	g.Go(func() error { return a.runDepositRefresh(ctx, p) })
	return g.Wait()
}

// FullMode runs detection, tracking, deposit refresh, and archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	p := a.buildPlatform(deps)
	if err := a.startFeed(ctx, p); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runScanLoop(ctx, p, deps, true) })
	g.Go(func() error { return a.runTrackLoop(ctx, p, deps, true) })
	g.Go(func() error { return a.runDepositRefresh(ctx, p) })
	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiveLoop(ctx, deps) })
	}
	return g.Wait()
}

// startFeed connects the ticker stream and waits briefly for prices to land.
func (a *App) startFeed(ctx context.Context, p *platform) error {
	if err := p.feed.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = p.feed.Close() })

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(feedWarmup):
	}
	a.logger.InfoContext(ctx, "price feed warmed up", slog.Int("symbols", p.feed.Len()))
	return nil
}

// runScanLoop runs detection cycles at the configured interval. Errors are
// logged and the loop continues; only context cancellation stops it.
func (a *App) runScanLoop(ctx context.Context, p *platform, deps *Dependencies, notifyOut bool) error {
	interval := a.cfg.Scanner.ScanInterval.Duration
	a.logger.InfoContext(ctx, "scanner started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		signals, err := p.scanner.Scan(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
			continue
		}

		for _, sig := range signals {
			if !notifyOut {
				continue
			}
			stats, err := deps.SignalStore.TokenStats(ctx, sig.Symbol)
			if err != nil {
				a.logger.WarnContext(ctx, "token stats lookup failed",
					slog.String("symbol", sig.Symbol),
					slog.String("error", err.Error()),
				)
			}
			if err := deps.Notifier.SignalDetected(ctx, sig, stats, nil); err != nil {
				a.logger.WarnContext(ctx, "signal notification failed",
					slog.String("symbol", sig.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// runTrackLoop runs closure checks at the configured interval.
func (a *App) runTrackLoop(ctx context.Context, p *platform, deps *Dependencies, notifyOut bool) error {
	interval := a.cfg.Tracker.CheckInterval.Duration
	a.logger.InfoContext(ctx, "tracker started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		closed, err := p.tracker.CheckClosures(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "tracking cycle failed", slog.String("error", err.Error()))
			continue
		}

		for _, cs := range closed {
			if !notifyOut {
				continue
			}
			if err := deps.Notifier.SignalClosed(ctx, cs); err != nil {
				a.logger.WarnContext(ctx, "closure notification failed",
					slog.String("symbol", cs.Signal.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// runDepositRefresh keeps the deposit/withdraw status cache warm so signal
// messages reflect current transferability.
func (a *App) runDepositRefresh(ctx context.Context, p *platform) error {
	refresh := func() {
		if _, err := p.exchange.DepositWithdrawStatus(ctx); err != nil {
			a.logger.WarnContext(ctx, "deposit status refresh failed",
				slog.String("error", err.Error()),
			)
		}
	}
	refresh()

	ticker := time.NewTicker(depositRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}

// runArchiveLoop periodically exports aged rows to blob storage and trims
// the hot price history table after a successful export.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now().UTC()
		signalCutoff := now.AddDate(0, 0, -a.cfg.Archive.RetentionDays)
		historyCutoff := now.Add(-time.Duration(a.cfg.Archive.HistoryHours) * time.Hour)

		if n, err := deps.Archiver.ArchiveClosedSignals(ctx, signalCutoff); err != nil {
			a.logger.ErrorContext(ctx, "signal archive failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "signals archived", slog.Int64("count", n))
		}

		n, err := deps.Archiver.ArchivePriceHistory(ctx, historyCutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "price history archive failed", slog.String("error", err.Error()))
			continue
		}
		if n == 0 {
			continue
		}

		deleted, err := deps.HistoryStore.DeleteBefore(ctx, historyCutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "price history trim failed", slog.String("error", err.Error()))
			continue
		}
		a.logger.InfoContext(ctx, "price history archived",
			slog.Int64("exported", n),
			slog.Int64("deleted", deleted),
		)
	}
}
