package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/timeline-cache/config"
	"github.com/d60-Lab/timeline-cache/internal/api"
	"github.com/d60-Lab/timeline-cache/internal/api/handler"
	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/internal/service"
	"github.com/d60-Lab/timeline-cache/pkg/database"
	"github.com/d60-Lab/timeline-cache/pkg/logger"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()

	db := must(database.InitDB(cfg))
	inv := repository.NewInvalidator()
	timelineRepo := repository.NewTimelineRepository(db, inv)
	statusRepo := repository.NewStatusRepository(db, inv)
	cursorRepo := repository.NewCursorRepository(db)
	feeds := service.NewFeedManager(timelineRepo, cursorRepo)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	registered := 0
	for _, fc := range cfg.Feeds {
		src, err := buildSource(fc, httpClient)
		if err != nil {
			logger.Warn("skip feed", zap.String("paging_key", fc.PagingKey), zap.Error(err))
			continue
		}
		rps := fc.RPS
		if rps <= 0 {
			rps = 1
		}
		feeds.Register(fc.AccountKey, fc.PagingKey, datasource.NewRateLimited(src, rps, 3))
		registered++
	}
	logger.Info("feeds registered", zap.Int("count", registered))

	h := handler.NewHandler(timelineRepo, statusRepo, cursorRepo, feeds)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(h, cfg.Debug),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// buildSource wires the fetchers this binary ships: a Mastodon public-timeline
// client and a plain HTTP RSS fetcher. Hosts embedding the library inject
// their own clients for the remaining platforms.
func buildSource(fc config.FeedConfig, client *http.Client) (datasource.PagingSource, error) {
	switch fc.Type {
	case "mastodon":
		if fc.Host == "" {
			return nil, fmt.Errorf("mastodon feed needs a host")
		}
		return datasource.NewMastodonSource(fc.Host, mastodonPublicTimeline(client, fc.Host)), nil
	case "rss":
		if fc.URL == "" {
			return nil, fmt.Errorf("rss feed needs a url")
		}
		return datasource.NewRSSSource(fc.URL, fetchBody(client)), nil
	default:
		return nil, fmt.Errorf("unsupported feed type %q", fc.Type)
	}
}

func mastodonPublicTimeline(client *http.Client, host string) datasource.MastodonFetch {
	return func(ctx context.Context, maxID, minID string, limit int) ([]datasource.MastodonStatus, error) {
		q := url.Values{}
		if maxID != "" {
			q.Set("max_id", maxID)
		}
		if minID != "" {
			q.Set("min_id", minID)
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		u := "https://" + host + "/api/v1/timelines/public?" + q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("mastodon %s: status %d", host, resp.StatusCode)
		}
		var statuses []datasource.MastodonStatus
		if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
			return nil, err
		}
		return statuses, nil
	}
}

func fetchBody(client *http.Client) datasource.RSSFetch {
	return func(ctx context.Context, feedURL string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("rss %s: status %d", feedURL, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
}
