package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// DefaultScopes are the scopes the Gmail backend needs: list, read, mark read and send
var DefaultScopes = []string{gmailapi.GmailModifyScope, gmailapi.GmailSendScope}

const (
	defaultRedirectAddr = "localhost:8080"
	defaultAuthTimeout  = 5 * time.Minute
)

// ErrNoToken is returned when no token has been cached yet
var ErrNoToken = errors.New("no cached oauth token")

// TokenCache stores an OAuth2 token as JSON on disk with owner-only permissions
type TokenCache struct {
	Path string
	mu   sync.Mutex
}

// Load returns the cached token or ErrNoToken
func (c *TokenCache) Load() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Open(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("open token cache: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	return tok, nil
}

// Save writes tok, creating the directory if needed
func (c *TokenCache) Save(tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("save token: nil token")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("could not save OAuth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// Delete removes the cached token. A missing file is not an error.
func (c *TokenCache) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete token cache: %w", err)
	}
	return nil
}

// Authorizer produces an authorized HTTP client for the Gmail backend. Without a cached token it
// runs the installed-app flow with a local redirect listener.
type Authorizer struct {
	CredentialsPath string
	Cache           *TokenCache
	Scopes          []string
	// RedirectAddr is the host:port the local redirect listener binds
	RedirectAddr string
	// Out receives the instructions for the browser step
	Out     io.Writer
	Timeout time.Duration
}

// NewAuthorizer creates an authorizer with default scopes and redirect address
func NewAuthorizer(credentialsPath, tokenPath string, out io.Writer) *Authorizer {
	return &Authorizer{
		CredentialsPath: credentialsPath,
		Cache:           &TokenCache{Path: tokenPath},
		Scopes:          DefaultScopes,
		RedirectAddr:    defaultRedirectAddr,
		Out:             out,
		Timeout:         defaultAuthTimeout,
	}
}

// LoadCredentials parses the client credentials downloaded from the Google console
func (a *Authorizer) LoadCredentials() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, a.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse credentials file: %w", err)
	}
	return cfg, nil
}

// Client returns an HTTP client whose refreshed tokens are written back to the cache
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := a.LoadCredentials()
	if err != nil {
		return nil, err
	}

	tok, err := a.Cache.Load()
	if errors.Is(err, ErrNoToken) {
		tok, err = a.authorize(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if !tok.Valid() {
		refreshed, err := cfg.TokenSource(ctx, tok).Token()
		if err != nil && isRevoked(err) {
			a.printf("\nYour Gmail access has expired or been revoked. Re-authorization is required.\n")
			refreshed, err = a.authorize(ctx, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
		tok = refreshed
	}
	if err := a.Cache.Save(tok); err != nil {
		return nil, err
	}

	src := &persistingSource{base: cfg.TokenSource(ctx, tok), cache: a.Cache, last: tok.AccessToken}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Logout removes the cached token so the next start re-runs authorization
func (a *Authorizer) Logout() error {
	return a.Cache.Delete()
}

func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return true
	}
	return strings.Contains(err.Error(), "invalid_grant") || strings.Contains(err.Error(), "expired or revoked")
}

// authorize runs the browser flow and exchanges the returned code
func (a *Authorizer) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	addr := a.RedirectAddr
	if addr == "" {
		addr = defaultRedirectAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("start redirect listener: %w", err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	server := &http.Server{Handler: callbackHandler(state, codeCh, errCh), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	local := *cfg
	local.RedirectURL = "http://" + ln.Addr().String()
	a.printf("\nAuthorization required\n1. Open this link: %s\n2. Grant access to echomail\n3. You will be redirected automatically\n\nWaiting for authorization...\n",
		local.AuthCodeURL(state, oauth2.AccessTypeOffline))

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, fmt.Errorf("authorization failed: %w", err)
	case <-time.After(timeout):
		return nil, fmt.Errorf("authorization timeout exceeded")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := local.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorization code for token: %w", err)
	}
	a.printf("Authorization successful.\n")
	return tok, nil
}

// callbackHandler accepts one redirect carrying the expected state and a code
func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var err error
		switch {
		case q.Get("error") != "":
			err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			err = fmt.Errorf("authorization state mismatch")
		case q.Get("code") == "":
			err = fmt.Errorf("authorization code not received")
		}
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "<html><body><h2>Authorization error</h2><p>"+err.Error()+"</p></body></html>")
			select {
			case errCh <- err:
			default:
			}
			return
		}
		_, _ = io.WriteString(w, "<html><body><h2>Authorization successful</h2><p>You can close this window and return to echomail.</p></body></html>")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
}

func (a *Authorizer) printf(format string, args ...interface{}) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format, args...)
	}
}

// persistingSource saves every newly issued token to the cache
type persistingSource struct {
	base  oauth2.TokenSource
	cache *TokenCache

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		_ = s.cache.Save(tok)
	}
	return tok, nil
}
