// Command wudooh restyles Arabic script text in web pages.
//
// Usage:
//
//	wudooh -config wudooh.yaml              # restyle pages from YAML config
//	wudooh -url https://example.com         # attach to a single live page
//	wudooh -file page.html                  # restyle a static file to stdout
package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/wudooh"
	"github.com/hazyhaar/wudooh/idgen"
	"github.com/hazyhaar/wudooh/internal/browser"
	"github.com/hazyhaar/wudooh/internal/config"
	"github.com/hazyhaar/wudooh/mirror"
	"github.com/hazyhaar/wudooh/relay"
	"github.com/hazyhaar/wudooh/settings"
	"github.com/hazyhaar/wudooh/watch"
)

func main() {
	configPath := flag.String("config", "", "path to wudooh.yaml config file")
	singleURL := flag.String("url", "", "attach to a single live page")
	filePath := flag.String("file", "", "restyle a static HTML file to stdout")
	dbPath := flag.String("db", "wudooh.db", "settings database path")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *filePath, *dbPath); err != nil {
		logger.Error("wudooh: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, filePath, dbPath string) error {
	if filePath != "" {
		return runFile(ctx, logger, filePath, dbPath)
	}
	if singleURL != "" {
		cfg := &config.Config{DB: dbPath, Pages: []config.PageConfig{{ID: idgen.New(), URL: singleURL}}}
		return runPages(ctx, logger, withDefaults(cfg))
	}
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runPages(ctx, logger, cfg)
	}

	fmt.Fprintln(os.Stderr, "usage: wudooh -config <file> | -url <url> | -file <path>")
	os.Exit(1)
	return nil
}

// withDefaults applies the same default rules a loaded file gets.
func withDefaults(cfg *config.Config) *config.Config {
	if cfg.Debounce.Window <= 0 {
		cfg.Debounce.Window = 250 * time.Millisecond
	}
	if cfg.Debounce.MaxBuffer <= 0 {
		cfg.Debounce.MaxBuffer = 1000
	}
	if cfg.Browser.NavTimeout <= 0 {
		cfg.Browser.NavTimeout = 30 * time.Second
	}
	return cfg
}

// runFile restyles a static HTML document once and writes it to stdout.
func runFile(ctx context.Context, logger *slog.Logger, path, dbPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	doc, err := mirror.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	var store *settings.Store
	if db, err := settings.Open(dbPath); err == nil {
		defer db.Close()
		store = settings.NewStore(db, logger)
		if err := store.EnsureDefaults(ctx); err != nil {
			return err
		}
	} else {
		logger.Warn("settings database unavailable, using defaults", "error", err)
	}

	c := wudooh.New(wudooh.Config{Store: store, Doc: doc, PageID: path, Logger: logger})
	if err := c.Run(ctx); err != nil {
		return err
	}

	out, err := doc.Render()
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

// runPages attaches to live pages and keeps them restyled until ctx is
// cancelled.
func runPages(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := settings.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open settings db: %w", err)
	}
	defer db.Close()
	store := settings.NewStore(db, logger)
	if err := store.EnsureDefaults(ctx); err != nil {
		return err
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:  cfg.Browser.Remote,
		Stealth:    cfg.Browser.Stealth,
		NavTimeout: cfg.Browser.NavTimeout,
		Logger:     logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	dispatcher := relay.NewDispatcher(logger)

	for _, pc := range cfg.Pages {
		if err := attachPage(ctx, logger, cfg, mgr, store, dispatcher, pc); err != nil {
			logger.Error("attach page failed", "url", pc.URL, "error", err)
		}
	}

	if cfg.Relay.Addr != "" {
		srv := &http.Server{Addr: cfg.Relay.Addr, Handler: relay.NewHTTP(dispatcher, logger)}
		go func() {
			logger.Info("relay listening", "addr", cfg.Relay.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("relay server failed", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	go watchSettings(ctx, logger, db, store, dispatcher)

	<-ctx.Done()
	return nil
}

// attachPage opens the tab, seeds the mirror from a snapshot, wires the
// mutation feed and write-back sink, and starts the page controller.
func attachPage(ctx context.Context, logger *slog.Logger, cfg *config.Config, mgr *browser.Manager, store *settings.Store, dispatcher *relay.Dispatcher, pc config.PageConfig) error {
	pageID := pc.ID
	if pageID == "" {
		pageID = idgen.New()
	}

	tab, err := browser.OpenTab(ctx, mgr, pc.URL, pageID)
	if err != nil {
		return err
	}

	snapshot, err := tab.Snapshot(ctx)
	if err != nil {
		tab.Close()
		return err
	}
	doc, err := mirror.Parse(bytes.NewReader(snapshot))
	if err != nil {
		tab.Close()
		return fmt.Errorf("seed mirror: %w", err)
	}

	feed := browser.NewFeed(browser.FeedConfig{
		Tab:       tab,
		Window:    cfg.Debounce.Window,
		MaxBuffer: cfg.Debounce.MaxBuffer,
		Logger:    logger,
	})
	if err := feed.Start(ctx); err != nil {
		tab.Close()
		return err
	}

	c := wudooh.New(wudooh.Config{
		Store:  store,
		Doc:    doc,
		Feed:   feed.Batches(),
		Sink:   browser.NewPatchSink(tab, logger),
		Host:   tab.Host(),
		PageID: pageID,
		Logger: logger,
	})
	if err := c.Run(ctx); err != nil {
		tab.Close()
		return err
	}

	dispatcher.Register(pageID, c.HandleMessage)
	logger.Info("page attached", "url", pc.URL, "page_id", pageID)

	context.AfterFunc(ctx, func() {
		dispatcher.Unregister(pageID)
		c.Stop()
		tab.Close()
	})
	return nil
}

// watchSettings broadcasts messages whenever the settings database
// changes, so running pages pick up new preferences without restarting.
func watchSettings(ctx context.Context, logger *slog.Logger, db *sql.DB, store *settings.Store, dispatcher *relay.Dispatcher) {
	w := watch.New(db, watch.Options{Logger: logger})
	w.OnChange(ctx, func() error {
		st, err := store.Load(ctx)
		if err != nil {
			return err
		}
		update, err := wudooh.UpdateAllText(st.ParamsFor("")).Encode()
		if err != nil {
			return err
		}
		if err := dispatcher.Broadcast(ctx, update); err != nil {
			logger.Warn("broadcast update failed", "error", err)
		}
		fonts, err := wudooh.InjectCustomFonts(st.CustomFonts).Encode()
		if err != nil {
			return err
		}
		if err := dispatcher.Broadcast(ctx, fonts); err != nil {
			logger.Warn("broadcast fonts failed", "error", err)
		}
		return nil
	})
}
