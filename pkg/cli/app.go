package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/inspectd/pkg/capture"
	"github.com/getmockd/inspectd/pkg/config"
	"github.com/getmockd/inspectd/pkg/decode"
	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/inspect"
	"github.com/getmockd/inspectd/pkg/session"
	"github.com/getmockd/inspectd/pkg/signature"
	"github.com/getmockd/inspectd/pkg/telemetry"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 10 * time.Second

// app holds the wired components of a running inspectd process.
type app struct {
	cfg *config.Config
	log *slog.Logger

	registry *prometheus.Registry
	metrics  *telemetry.Metrics

	store     *exchange.Store
	ca        *capture.CAManager
	proxy     *capture.Proxy
	inspector *inspect.Server

	servers   []*http.Server
	listeners []net.Listener
}

// newApp builds every component described by cfg. Nothing listens until
// start is called.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	feed := inspect.NewFeed(0)
	store := exchange.NewStore(
		exchange.WithLogger(log.With("component", "store")),
		exchange.WithInsertObserver(metrics.ObserveInsert),
		exchange.WithInsertObserver(feed.Publish),
	)

	dec, err := decode.New(cfg.Decode.Backend, cfg.Decode.ProtocPath)
	if err != nil {
		return nil, err
	}
	lazy := decode.NewLazy(dec, decode.Options{
		Timeout:  cfg.Decode.Timeout,
		Logger:   log.With("component", "decode"),
		Observer: metrics.ObserveDecode,
	})

	parser, err := signature.NewParser(ctx, cfg.Signature.ProtoFile, cfg.Signature.Message)
	if err != nil {
		return nil, fmt.Errorf("signature schema: %w", err)
	}
	ingestor := signature.NewIngestor(store, parser,
		signature.WithLogger(log.With("component", "signature")),
		signature.WithObserver(metrics.ObserveSignature),
	)

	resolver := session.NewDirResolver(cfg.Sessions.Dir, log.With("component", "session"))
	loader := session.NewLoader(store, resolver,
		session.WithLogger(log.With("component", "session")),
		session.WithSignatureParser(parser),
		session.WithObserver(metrics.ObserveSessionLoad),
	)

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  metrics,
		store:    store,
	}

	ca := capture.NewCAManager(cfg.Proxy.CACert, cfg.Proxy.CAKey)
	switch {
	case cfg.Proxy.Enabled:
		if err := ca.EnsureCA(); err != nil {
			return nil, fmt.Errorf("prepare CA: %w", err)
		}
		a.ca = ca
	case ca.Exists():
		if err := ca.Load(); err != nil {
			log.Warn("CA present but unreadable", "cert", ca.CertPath(), "error", err)
		} else {
			a.ca = ca
		}
	}

	opts := inspect.Options{
		Store:    store,
		Decoder:  lazy,
		Ingestor: ingestor,
		Loader:   loader,
		Sessions: resolver,
		Feed:     feed,
		Metrics:  metrics,
		Gatherer: registry,
		Logger:   log.With("component", "inspect"),
		Version:  Version,
	}
	if a.ca != nil {
		opts.CA = a.ca
	}
	a.inspector = inspect.New(opts)

	if cfg.Proxy.Enabled {
		sigPath, err := capture.ParseFieldPath(cfg.Proxy.SignaturePath)
		if err != nil {
			return nil, err
		}
		a.proxy = capture.New(capture.Options{
			Filter:        cfg.Filter(),
			Store:         store,
			CA:            a.ca,
			SignaturePath: sigPath,
			Logger:        log.With("component", "capture"),
		})
	}

	return a, nil
}

// start opens the listeners. Addresses bound to port 0 are resolved.
func (a *app) start() error {
	a.servers = []*http.Server{{
		Addr:              a.cfg.Listen,
		Handler:           a.inspector,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if a.proxy != nil {
		a.servers = append(a.servers, &http.Server{
			Addr:              a.cfg.Proxy.Listen,
			Handler:           a.proxy,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	for _, srv := range a.servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			a.closeListeners()
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		a.listeners = append(a.listeners, ln)
	}
	return nil
}

func (a *app) closeListeners() {
	for _, ln := range a.listeners {
		_ = ln.Close()
	}
	a.listeners = nil
}

// inspectAddr returns the bound address of the inspection server.
func (a *app) inspectAddr() string {
	if len(a.listeners) == 0 {
		return ""
	}
	return a.listeners[0].Addr().String()
}

// proxyAddr returns the bound address of the capture proxy, if running.
func (a *app) proxyAddr() string {
	if len(a.listeners) < 2 {
		return ""
	}
	return a.listeners[1].Addr().String()
}

// serve runs the servers until ctx is done or one of them fails, then shuts
// them all down and writes the live dump when configured.
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range a.servers {
		ln := a.listeners[i]
		a.log.Info("listening", "addr", ln.Addr().String(), "server", serverName(i))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range a.servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()

	if a.cfg.Sessions.DumpOnExit {
		path, dumpErr := a.dumpLive(time.Now())
		switch {
		case dumpErr != nil:
			a.log.Error("failed to write live dump", "error", dumpErr)
			err = errors.Join(err, dumpErr)
		case path != "":
			a.log.Info("live exchanges written", "path", path)
		}
	}
	return err
}

// dumpLive writes the live exchanges to a new dump in the sessions
// directory and returns its path. Nothing is written when there are none.
func (a *app) dumpLive(now time.Time) (string, error) {
	live := slices.Collect(a.store.Live())
	if len(live) == 0 {
		return "", nil
	}
	name := "capture-" + now.UTC().Format("20060102-150405") + ".json"
	path := filepath.Join(a.cfg.Sessions.Dir, name)
	if err := session.WriteDump(path, live); err != nil {
		return "", err
	}
	return path, nil
}

func serverName(i int) string {
	if i == 0 {
		return "inspect"
	}
	return "capture"
}
