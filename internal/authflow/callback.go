package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/httplog/v3"
)

// callbackResult carries the captured redirect parameters (or an error) from
// the HTTP handler to Prompt.
type callbackResult struct {
	code  string
	state string
	err   error
}

// CallbackCodeProvider captures the authorization code by serving the
// redirect URI itself. The redirect URI must point at a loopback address;
// the provider runs a one-shot HTTP server there for the duration of a
// single Prompt call.
type CallbackCodeProvider struct {
	// RedirectURI must match the flow's configured redirect URI.
	RedirectURI string

	// OpenURL hands the authorization URL to the browser. Defaults to the
	// platform opener.
	OpenURL func(url string) error

	// Listener overrides the listener bound from RedirectURI. Used by tests.
	Listener net.Listener
}

// Compile-time check to ensure CallbackCodeProvider implements CodeProvider
var _ CodeProvider = (*CallbackCodeProvider)(nil)

// Prompt starts the callback server, opens the browser, and blocks until the
// provider redirects back with a code or ctx is cancelled.
func (p *CallbackCodeProvider) Prompt(ctx context.Context, req *AuthorizationRequest) (string, string, error) {
	u, err := url.Parse(p.RedirectURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URI: %w", err)
	}

	listener := p.Listener
	if listener == nil {
		listener, err = net.Listen("tcp", u.Host)
		if err != nil {
			return "", "", fmt.Errorf("failed to listen on %s: %w", u.Host, err)
		}
	}

	resultCh := make(chan callbackResult, 1)

	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle("GET "+path, requestLogging(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capture(w, r, resultCh)
	})))

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serveErrCh := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}()

	open := p.OpenURL
	if open == nil {
		open = openBrowser
	}
	if err := open(req.URL); err != nil {
		slog.WarnContext(ctx, "could not open browser, visit the authorization URL manually", "url", req.URL)
	}

	select {
	case res := <-resultCh:
		return res.code, res.state, res.err
	case err := <-serveErrCh:
		return "", "", fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// capture pulls code and state off the redirect request and reports the
// outcome to the user's browser tab.
func capture(w http.ResponseWriter, r *http.Request, resultCh chan<- callbackResult) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: fmt.Errorf("provider denied authorization: %s", errCode)})
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing code parameter.", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: fmt.Errorf("redirect carries no code parameter")})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><p>Authorization received. You can close this window.</p></body></html>"))

	sendResult(resultCh, callbackResult{code: code, state: query.Get("state")})
}

// sendResult delivers the first result only; later redirects hit a closed
// login attempt and are dropped.
func sendResult(resultCh chan<- callbackResult, res callbackResult) {
	select {
	case resultCh <- res:
	default:
	}
}

// requestLogging logs callback requests with method, path, status, and
// duration. Query parameters are never logged: the redirect URL carries the
// authorization code.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),

		// Explicitly prevent logging headers/body to avoid leaking sensitive data
		LogRequestHeaders:  []string{},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: true,
	})
}
