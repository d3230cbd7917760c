package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/auth"
	"github.com/raysh454/medtriage/internal/history"
	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
	"github.com/raysh454/medtriage/internal/scanjob"
	"github.com/raysh454/medtriage/internal/settings"
	"github.com/raysh454/medtriage/internal/share"
	"github.com/raysh454/medtriage/internal/webclient"
)

// Application is the runtime state container. It owns the store and every
// component built on it; pass it to the CLI and server rather than using
// package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger

	Store       kvstore.Store
	History     *history.Cache
	Preferences *settings.Preferences
	Scans       *scanjob.Controller
	Gate        *auth.Gate

	webClient webclient.WebClient
	sharer    share.Sharer
}

// Option overrides a collaborator NewApplication would otherwise build.
type Option func(*options)

type options struct {
	store     kvstore.Store
	transport analyzer.Transport
	authn     auth.Authenticator
	sharer    share.Sharer
}

// WithStore uses s instead of opening cfg.StorageBackend. The Application takes ownership.
func WithStore(s kvstore.Store) Option { return func(o *options) { o.store = s } }

// WithTransport replaces the HTTP analysis client.
func WithTransport(t analyzer.Transport) Option { return func(o *options) { o.transport = t } }

// WithAuthenticator sets the gate's authenticator.
func WithAuthenticator(a auth.Authenticator) Option { return func(o *options) { o.authn = a } }

// WithSharer replaces the configured sharer.
func WithSharer(s share.Sharer) Option { return func(o *options) { o.sharer = s } }

// NewApplication wires every component from cfg.
func NewApplication(cfg *Config, logger logging.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		return nil, errors.New("app: nil logger provided")
	}
	if cfg == nil {
		cfg = DefaultConfig()
		if err := cfg.normalize(); err != nil {
			return nil, err
		}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{Config: cfg, Logger: logger}

	store := o.store
	if store == nil {
		if err := os.MkdirAll(cfg.StorageRoot, 0755); err != nil {
			return nil, fmt.Errorf("creating storage root directory: %w", err)
		}
		s, err := kvstore.Open(cfg.StorageBackend, cfg.StorageRoot, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = s
	}
	a.Store = store

	var err error
	if a.History, err = history.NewCache(store, logger, nil); err != nil {
		a.Close()
		return nil, fmt.Errorf("new history: %w", err)
	}
	if a.Preferences, err = settings.NewPreferences(store, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("new preferences: %w", err)
	}

	transport := o.transport
	if transport == nil {
		wc, err := webclient.NewNetHTTPClient(cfg.HTTP, logger, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("new webclient: %w", err)
		}
		a.webClient = wc
		if transport, err = analyzer.NewClient(cfg.Analyzer, wc, logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("new analyzer: %w", err)
		}
	}
	if a.Scans, err = scanjob.NewController(transport, a.History, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("new scan controller: %w", err)
	}

	authn := o.authn
	if authn == nil {
		authn = auth.Passphrase{Digest: cfg.Auth.PassphraseSHA256}
	}
	if a.Gate, err = auth.NewGate(authn, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("new gate: %w", err)
	}

	a.sharer = o.sharer
	if a.sharer == nil {
		if cfg.Share.Enabled() {
			ms, err := share.NewMinioSharer(cfg.Share, logger)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("new sharer: %w", err)
			}
			a.sharer = ms
		} else {
			a.sharer = share.FileSharer{}
		}
	}

	logger.Info("application ready",
		logging.Field{Key: "storage_root", Value: cfg.StorageRoot},
		logging.Field{Key: "backend", Value: string(cfg.StorageBackend)},
		logging.Field{Key: "analyzer", Value: cfg.Analyzer.Endpoint})
	return a, nil
}

// Exporter returns the exporter for format, writing into the configured report dir.
// An empty format selects the configured default.
func (a *Application) Exporter(format report.Format) (report.Exporter, error) {
	if format == "" {
		format = a.Config.Report.Format
	}
	return report.NewExporter(format, a.Config.Report.Dir, a.Logger)
}

// ExportEntry renders and exports the history entry with id.
func (a *Application) ExportEntry(ctx context.Context, id string, format report.Format) (report.Artifact, error) {
	entry, err := a.History.Get(ctx, id)
	if err != nil {
		return report.Artifact{}, err
	}
	exp, err := a.Exporter(format)
	if err != nil {
		return report.Artifact{}, err
	}
	return exp.Export(ctx, report.Render(entry.AnalysisResult), report.ArtifactName(entry))
}

// Share publishes an exported artifact with the configured sharer.
func (a *Application) Share(ctx context.Context, art report.Artifact) (string, error) {
	link, err := a.sharer.Share(ctx, art)
	if err != nil {
		return "", model.AsScanError(err, model.KindRender)
	}
	return link, nil
}

// Close releases the webclient and the store.
func (a *Application) Close() error {
	if a == nil {
		return errors.New("application is nil")
	}
	var firstErr error
	if a.webClient != nil {
		if err := a.webClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close webclient: %w", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
	}
	a.Logger.Info("application closed")
	return firstErr
}
