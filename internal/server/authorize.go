package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/shared"
	"golang.org/x/oauth2"
)

const defaultAuthorizeTimeout = 2 * time.Minute

// AuthorizeOpts configures [Authorize].
type AuthorizeOpts struct {
	Config   *oauth2.Config
	Listener net.Listener           // Must serve the config's redirect URL
	Open     func(url string) error // Opens the consent page, usually [shared.OpenBrowser]
	Prompt   io.Writer              // Receives instructions for the user
	Timeout  time.Duration          // Defaults to two minutes
	Logger   *log.Logger
}

// Authorize runs the authorization code flow: it serves the callback on opts.Listener, opens the consent page
// and waits for the redirect. The server is shut down before returning.
func Authorize(ctx context.Context, opts AuthorizeOpts) (*oauth2.Token, error) {
	if opts.Config == nil || opts.Listener == nil {
		return nil, fmt.Errorf("%w: oauth config and listener are required", shared.ErrMissingArgument)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAuthorizeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}

	state := shared.GenerateID()
	handler := NewOAuthHandler(opts.Config, state)

	router := NewBasicRouter()
	router.Use(RecoverMiddleware(opts.Logger), LoggingMiddleware(opts.Logger))
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		opts.Logger.Info("starting OAuth callback server", "addr", opts.Listener.Addr().String())
		if err := httpServer.Serve(opts.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			opts.Logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := opts.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(opts.Prompt, "→ Opening browser for Google authorization...")
	if opts.Open == nil || opts.Open(authURL) != nil {
		fmt.Fprintf(opts.Prompt, "⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(opts.Prompt, "→ Waiting for authorization (%s timeout)...\n", opts.Timeout)

	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrAuthFailed, opts.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
