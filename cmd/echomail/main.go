package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ajramos/echomail/internal/config"
	"github.com/ajramos/echomail/internal/db"
	"github.com/ajramos/echomail/internal/gmail"
	"github.com/ajramos/echomail/internal/llm"
	"github.com/ajramos/echomail/internal/mailbox"
	"github.com/ajramos/echomail/internal/mediator"
	"github.com/ajramos/echomail/internal/services"
	"github.com/ajramos/echomail/internal/tui"
	"github.com/ajramos/echomail/internal/version"
	"github.com/ajramos/echomail/pkg/auth"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to configuration file (default: ~/.config/echomail/config.json)")
	serverFlag := flag.String("server", "", "Mail server API base URL")
	backendFlag := flag.String("backend", "", "Mail backend: server or gmail")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %-16s Override default config file path\n", config.EnvConfigPath)
		fmt.Fprintf(os.Stderr, "  %-16s Override the mail server base URL\n", config.EnvServerURL)
	}
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := config.ResolveConfigPath(*configPathFlag, os.Getenv)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	cfg.ApplyEnv(os.Getenv)
	applyFlags(cfg, *backendFlag, *serverFlag)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides config values with non-empty command line flags
func applyFlags(cfg *config.Config, backend, server string) {
	if b := strings.TrimSpace(backend); b != "" {
		cfg.Backend = b
	}
	if s := strings.TrimSpace(server); s != "" {
		cfg.Server.BaseURL = s
	}
}

func run(cfg *config.Config) error {
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logger, closer, err := tui.NewFileLogger(logPath)
	if err != nil {
		log.Printf("Warning: could not open log file: %v", err)
		logger = log.New(io.Discard, "", 0)
		closer = io.NopCloser(nil)
	}
	defer func() { _ = closer.Close() }()
	logger.Printf("%s starting with backend %s", version.GetVersionString(), cfg.Backend)

	ctx := context.Background()
	sess, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var summaryStore services.SummaryStore
	var recipients *db.RecipientStore
	if cfg.Summary.DatabasePath != "" {
		store, err := db.Open(ctx, cfg.Summary.DatabasePath)
		if err != nil {
			logger.Printf("could not open local store: %v", err)
		} else {
			defer func() { _ = store.Close() }()
			recipients = db.NewRecipientStore(store)
			if cfg.Summary.CacheEnabled {
				summaryStore = db.NewSummaryStore(store)
			}
		}
	}

	colors, err := config.LoadTheme(cfg.Theme)
	if err != nil {
		logger.Printf("could not load theme %s: %v", cfg.Theme, err)
		colors = config.DefaultColors()
	}

	initial, err := services.ParseView(cfg.InitialView)
	if err != nil || !initial.IsLabelView() {
		initial = services.ViewInbox
	}

	cache := services.NewLabelCache(logger)
	compose := services.NewComposeService(sess.backend, sess.assistant, cache, logger)

	var recent services.RecentRecipients
	if recipients != nil {
		compose.SetRecipientLog(recipients)
		recent = recipients
	}
	contacts := services.NewContactBook(sess.contacts, recent, logger)

	opts := services.NavigatorOptions{
		Cache:       cache,
		History:     services.NewHistory(),
		Compose:     compose,
		InitialView: initial,
		Logger:      logger,
	}
	if sess.assistant != nil {
		poller := mediator.NewPoller(sess.assistant, mediator.Options{
			Interval: cfg.PollInterval(),
			Logger:   logger,
		})
		opts.Session = services.NewReconciler(poller, compose, logger)
	}
	nav := services.NewNavigator(sess.backend, opts)

	deps := tui.Deps{
		Config:    cfg,
		Colors:    colors,
		Navigator: nav,
		Compose:   compose,
		Suggester: services.NewSuggester(contacts, cfg.SuggestDelay(), logger),
		Logger:    logger,
	}
	summarizer, err := summarizerFor(cfg, sess)
	if err != nil {
		logger.Printf("summaries disabled: %v", err)
	}
	if cfg.Summary.Enabled && summarizer != nil {
		var summaryCache *services.SummaryCache
		if summaryStore != nil {
			summaryCache = services.NewSummaryCache(summaryStore)
		}
		deps.Summaries = services.NewSummaryService(summarizer, summaryCache, cfg.Summary.MaxInput, logger)
	}

	return tui.NewApp(deps).Run()
}

// session is the set of remote capabilities a backend offers. Optional ones are nil when absent.
type session struct {
	backend    services.MailBackend
	assistant  services.AssistantBackend
	contacts   services.ContactSearcher
	summarizer services.Summarizer
}

func connect(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session, error) {
	switch cfg.Backend {
	case config.BackendGmail:
		authz := auth.NewAuthorizer(cfg.Gmail.Credentials, cfg.Gmail.Token, os.Stdout)
		httpClient, err := authz.Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("gmail sign-in failed: %w", err)
		}
		svc, err := gmail.NewService(ctx, httpClient)
		if err != nil {
			return nil, fmt.Errorf("could not initialize Gmail service: %w", err)
		}
		backend := gmail.New(svc, gmail.Options{
			PageSize: int64(cfg.Server.PageSize),
			Workers:  cfg.Gmail.Workers,
			OnLogout: authz.Logout,
			Logger:   logger,
		})
		return &session{backend: backend, contacts: backend}, nil

	case config.BackendServer:
		client, err := mailbox.NewClient(cfg.Server.BaseURL, mailbox.Options{
			Timeout:           cfg.ServerTimeout(),
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
			PageSize:          cfg.Server.PageSize,
			SessionCookie:     cfg.Server.SessionCookie,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create mail server client: %w", err)
		}
		return &session{backend: client, assistant: client, contacts: client, summarizer: client}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// summarizerFor picks the summary source. "server" uses the backend's own endpoint, which only
// the mail server backend has.
func summarizerFor(cfg *config.Config, sess *session) (services.Summarizer, error) {
	switch cfg.Summary.Provider {
	case "", config.SummaryProviderServer:
		if sess.summarizer == nil {
			return nil, fmt.Errorf("backend %q has no summarize endpoint", cfg.Backend)
		}
		return sess.summarizer, nil
	}
	provider, err := llm.NewProvider(llm.Settings{
		Provider: cfg.Summary.Provider,
		Endpoint: cfg.Summary.Endpoint,
		Model:    cfg.Summary.Model,
		Region:   cfg.Summary.Region,
		Timeout:  cfg.SummaryTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return llm.NewSummarizer(provider), nil
}
