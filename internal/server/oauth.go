package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

var (
	errStateMismatch = errors.New("state parameter does not match")
	errConsentDenied = errors.New("consent denied")
)

// OAuthResult is the outcome of one authorization code callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect URI of the installed-app flow.
//
// The first request decides the outcome; any later request is rejected without touching the result.
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	results chan OAuthResult
	handled atomic.Bool
	once    sync.Once
}

// NewOAuthHandler creates a handler that accepts callbacks carrying state and exchanges their code with config.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:  config,
		state:   state,
		results: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP checks state, exchanges the code and publishes the token or the failure.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	token, status, err := h.exchange(r)
	h.Send(OAuthResult{Token: token, err: err})
	if err != nil {
		http.Error(w, fmt.Sprintf("Authorization failed: %v", err), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) exchange(r *http.Request) (*oauth2.Token, int, error) {
	query := r.URL.Query()
	if query.Get("state") != h.state {
		return nil, http.StatusBadRequest, errStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		reason := query.Get("error")
		if desc := query.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return nil, http.StatusBadRequest, fmt.Errorf("%w (%s)", errConsentDenied, reason)
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, http.StatusOK, nil
}

const successPage = `<!DOCTYPE html>
<html>
<head>
<title>acctsync</title>
<style>
body { font-family: system-ui, sans-serif; display: grid; place-items: center; height: 100vh; margin: 0; background: #f1f3f4; }
main { background: #fff; padding: 2rem 3rem; border-radius: 8px; text-align: center; }
h1 { color: #0F9D58; }
</style>
</head>
<body>
<main>
<h1>Google Sheets Authorized</h1>
<p>acctsync can now write team reports. Return to the terminal to continue.</p>
</main>
</body>
</html>
`

// Send publishes result. Only the first call has an effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
