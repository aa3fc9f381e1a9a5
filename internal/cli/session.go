package cli

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/grantcarthew/cdpconn/internal/browser"
	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// pageTarget is the --target value that selects the first page target.
const pageTarget = "page"

// endpoint is a reachable DevTools HTTP endpoint, optionally backed by a
// browser we launched.
type endpoint struct {
	host    string
	port    int
	browser *browser.Browser
}

// openEndpoint returns the endpoint named by --host/--port, launching a
// browser first when --launch is set.
func openEndpoint(ctx context.Context) (*endpoint, error) {
	if !Launch {
		return &endpoint{host: Host, port: Port}, nil
	}

	opts, err := launchOptions()
	if err != nil {
		return nil, err
	}

	debugf("launching %s on port %d (headless=%v)", opts.Kind, opts.Port, opts.Headless)
	b, err := browser.Start(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "launch browser")
	}
	debugf("%s started (pid %d)", b.Kind(), b.PID())

	return &endpoint{host: browser.Host, port: b.Port(), browser: b}, nil
}

// Close stops a launched browser.
func (e *endpoint) Close() {
	if e.browser != nil {
		debugf("stopping browser (pid %d)", e.browser.PID())
		_ = e.browser.Close()
	}
}

// version fetches /json/version, from the launched browser if there is one.
func (e *endpoint) version(ctx context.Context) (*cdp.VersionInfo, error) {
	if e.browser != nil {
		return e.browser.Version(ctx)
	}
	return cdp.FetchVersion(ctx, e.host, e.port)
}

// targets fetches /json, from the launched browser if there is one.
func (e *endpoint) targets(ctx context.Context) ([]cdp.Target, error) {
	if e.browser != nil {
		return e.browser.Targets(ctx)
	}
	return cdp.FetchTargets(ctx, e.host, e.port)
}

// targetID resolves the --target flag against the endpoint. def is used when
// the flag is empty.
func (e *endpoint) targetID(ctx context.Context, def string) (string, error) {
	id := TargetID
	if id == "" {
		id = def
	}
	if id != pageTarget {
		return id, nil
	}

	targets, err := e.targets(ctx)
	if err != nil {
		return "", err
	}
	page := cdp.FindPageTarget(targets)
	if page == nil {
		return "", errors.New("no page target found")
	}
	debugf("using page target %s (%s)", page.ID, page.URL)
	return page.ID, nil
}

// session is a connected handler plus the endpoint it runs against.
type session struct {
	*cdp.Handler
	endpoint *endpoint
	log      *zap.Logger
}

// openSession connects a handler to the endpoint. defaultTarget applies when
// --target is empty.
func openSession(ctx context.Context, defaultTarget string) (*session, error) {
	ep, err := openEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	target, err := ep.targetID(ctx, defaultTarget)
	if err != nil {
		ep.Close()
		return nil, err
	}

	log := newLogger()
	h := cdp.NewHandler(cdp.Config{
		Host:           ep.host,
		Port:           ep.port,
		TargetID:       target,
		CommandTimeout: Timeout,
		PingInterval:   Keepalive,
		Logger:         log,
	})

	debugf("connecting to %s:%d target=%q", ep.host, ep.port, target)
	if err := h.Connect(ctx); err != nil {
		_ = h.Close()
		ep.Close()
		_ = log.Sync()
		return nil, err
	}

	return &session{Handler: h, endpoint: ep, log: log}, nil
}

// Close closes the handler and stops a launched browser.
func (s *session) Close() error {
	err := s.Handler.Close()
	s.endpoint.Close()
	_ = s.log.Sync()
	return err
}
