// Package browser measures anchors on a live page in headless Chrome.
//
// The page marks its flow container with a CSS selector and each anchor
// element with a data-flow-anchor attribute:
//
//	<section id="flow">
//	  <div data-flow-anchor="hub">...</div>
//	</section>
//
// [Host] implements anchor.Host by evaluating a measuring script in the
// page, and anchor.Notifier by injecting a ResizeObserver, a
// MutationObserver and a scroll listener that call back into Go through a
// CDP runtime binding.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// AnchorAttribute names the attribute that carries an element's anchor name.
const AnchorAttribute = "data-flow-anchor"

// Options configures a browser session.
type Options struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string

	// Headful shows the browser window when launching locally.
	Headful bool

	// NavigateTimeout bounds page navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *log.Logger
}

func (o *Options) defaults() {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// Session owns one Chrome connection.
type Session struct {
	opts    Options
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts Chrome (or connects to opts.RemoteURL).
func Launch(ctx context.Context, opts Options) (*Session, error) {
	opts.defaults()
	logger := opts.Logger

	wsURL := opts.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Context(ctx).Headless(!opts.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		logger.Debug("launched local chrome", "url", wsURL)
	} else {
		logger.Debug("connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return &Session{opts: opts, browser: b, lnch: l}, nil
}

// Open navigates a new tab to pageURL and returns a host measuring the
// container matched by selector.
func (s *Session) Open(ctx context.Context, pageURL, selector string) (*Host, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.opts.Logger.Warn("page load did not finish", "url", pageURL, "err", err)
	}

	h := newHost(page, selector, s.opts.Logger)
	if err := h.install(); err != nil {
		page.Close()
		return nil, err
	}
	return h, nil
}

// Close disconnects and, for a locally launched Chrome, kills it.
func (s *Session) Close() error {
	err := s.browser.Close()
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch.Cleanup()
	}
	return err
}
