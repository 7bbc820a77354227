// Command popclient polls one or more configured POP3 accounts, downloads
// new messages into per-account folders, and appends them to per-account
// mbox files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yam-go/popclient/internal/config"
	"github.com/yam-go/popclient/internal/dedup"
	"github.com/yam-go/popclient/internal/logging"
	"github.com/yam-go/popclient/internal/mbox"
	"github.com/yam-go/popclient/internal/metrics"
	"github.com/yam-go/popclient/internal/pop3"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Global.LogLevel)

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Global.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	dupSet, err := dedup.Open(cfg.Global.UIDLStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening uidl store: %v\n", err)
		os.Exit(1)
	}
	defer dupSet.Close()

	if err := os.MkdirAll(cfg.Global.MboxDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "error creating mbox directory: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.Global.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Global.Metrics.Address, cfg.Global.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server started", "address", cfg.Global.Metrics.Address, "path", cfg.Global.Metrics.Path)
	}

	logger.Info("starting popclient", "accounts", len(cfg.Accounts))

	// One ingest per account, keyed by name, so the builder's newSession
	// closure below can hand RunAccounts a Session wired to the right
	// folder while still letting this function export each account's
	// mbox file once the run completes (§9 supplement #1's single
	// accumulated run, one post-run hook).
	ingests := make(map[string]*fileIngest, len(cfg.Accounts))
	builder := pop3.SessionBuilder{
		Global:        cfg.Global,
		DupSet:        dupSet,
		UserInitiated: false,
	}

	results, aggregate := pop3.RunAccounts(ctx, cfg.Accounts, func(account config.AccountConfig) (*pop3.Session, error) {
		ingest := newFileIngest(cfg.Global.MboxDir)
		ingests[account.Name] = ingest
		builder.Collaborators = pop3.Collaborators{
			Examiner: headerExaminer{},
			Ingest:   ingest,
			Logger:   logging.NewSlogLogger(logger.With("account", account.Name)),
			Metrics:  collector,
		}
		return builder.NewSessionFor(account)
	})

	for _, result := range results {
		if result.Err != nil {
			logger.Error("session failed", "account", result.Account, "error", result.Err)
			continue
		}
		ingest, ok := ingests[result.Account]
		if !ok {
			continue
		}
		account := findAccount(cfg.Accounts, result.Account)
		if exported := exportAccountMbox(account, cfg.Global, ingest, logger); exported > 0 {
			logger.Info("exported messages to mbox", "account", result.Account, "count", exported)
		}
	}

	logger.Info("popclient finished",
		"on_server", aggregate.OnServer,
		"downloaded", aggregate.Downloaded,
		"deleted", aggregate.Deleted,
		"dup_skipped", aggregate.DupSkipped,
		"error", aggregate.Error,
	)

	if flags.Once {
		return
	}
}

// findAccount looks up an account by name, used to recover the full
// config.AccountConfig for an AccountResult (which carries only the name).
func findAccount(accounts []config.AccountConfig, name string) config.AccountConfig {
	for _, account := range accounts {
		if account.Name == name {
			return account
		}
	}
	return config.AccountConfig{Name: name}
}

func exportAccountMbox(account config.AccountConfig, global config.GlobalConfig, ingest *fileIngest, logger *slog.Logger) int {
	added := ingest.Added()
	if len(added) == 0 {
		return 0
	}

	examiner := headerExaminer{}
	entries := make([]mbox.Entry, 0, len(added))
	for _, ref := range added {
		header, err := examiner.ExamineMail(ref.File)
		if err != nil {
			logger.Warn("skipping mbox entry, could not read headers", "file", ref.File, "error", err)
			continue
		}
		entries = append(entries, mbox.Entry{
			Folder:      ref.Folder,
			MailFile:    ref.File,
			Date:        header.Date,
			FromAddress: header.From,
			Status:      mbox.StatusSeen,
		})
	}
	if len(entries) == 0 {
		return 0
	}

	mboxPath := filepath.Join(global.MboxDir, account.Name+".mbox")
	exported, err := mbox.Export(mboxPath, entries, true, nil, nil)
	if err != nil {
		logger.Error("mbox export failed", "account", account.Name, "error", err)
	}
	return exported
}
