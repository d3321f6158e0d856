package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"chatd/internal/config"
	"chatd/internal/directory"
	"chatd/internal/httpapi"
	"chatd/internal/metrics"
	"chatd/internal/msglog"
	"chatd/internal/protocol"
	"chatd/internal/server"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

const defaultConfigPath = "/etc/chatd/server.conf"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Server configuration file")
	mergeFiles := flag.String("merge", "", "Comma-separated extra configuration files merged over -config")
	adminAddr := flag.String("admin", "", "Admin HTTP listen address (disabled when empty)")
	serverName := flag.String("name", "chatd server", "Server display name")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if RunCLI(flag.Args()) {
		return
	}

	slog.Info("starting server", "version", Version, "config", *configPath)

	cfg := config.New()
	if err := cfg.ProcessFile(*configPath, false); err != nil {
		slog.Error("load configuration", "file", *configPath, "err", err)
		os.Exit(1)
	}
	for _, extra := range strings.Split(*mergeFiles, ",") {
		extra = strings.TrimSpace(extra)
		if extra == "" {
			continue
		}
		// Merge files are all-or-nothing: a bad line leaves the
		// configuration untouched.
		if err := cfg.ProcessFile(extra, true); err != nil {
			slog.Error("merge configuration", "file", extra, "err", err)
			os.Exit(1)
		}
	}

	hasher, err := directory.HasherByName(cfg.PasswordHash())
	if err != nil {
		slog.Error("configure password hash", "err", err)
		os.Exit(1)
	}
	cipher, err := buildCipher(cfg)
	if err != nil {
		slog.Error("configure cipher", "err", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	srv := server.New(cfg, directory.New(hasher), msglog.New(), metrics.New(promRegistry), protocol.NewCodec(cipher))

	var listeners []*server.Listener
	for _, addr := range cfg.ListenAddrs() {
		ln, err := server.Bind(srv, addr)
		if err != nil {
			slog.Error("bind listener", "addr", addr, "err", err)
			continue
		}
		listeners = append(listeners, ln)
	}
	if len(listeners) == 0 {
		slog.Error("no listener could be bound")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		ln := ln
		g.Go(func() error { return ln.Run(ctx) })
	}
	g.Go(func() error { return server.NewWorker(srv).Run(ctx) })
	if *adminAddr != "" {
		api := httpapi.New(*serverName, srv, promRegistry)
		g.Go(func() error { return api.Run(ctx, *adminAddr) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func buildCipher(cfg *config.Config) (protocol.Cipher, error) {
	name, key := cfg.Cipher()
	switch name {
	case config.CipherChaCha20Poly1305:
		return protocol.NewChaCha20Poly1305(key)
	default:
		return protocol.IdentityCipher(), nil
	}
}
