package session

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// Refresher mints a new access token from a refresh token. Satisfied by *Client.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error)
}

// GatewayOption customizes gateway construction.
type GatewayOption func(*Gateway)

// WithGatewayTransport overrides the HTTP transport (useful for tests).
func WithGatewayTransport(doer HTTPDoer) GatewayOption {
	return func(g *Gateway) {
		if doer != nil {
			g.transport = doer
		}
	}
}

// WithGatewayLogger overrides the gateway logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGatewayAuthScheme overrides the Authorization scheme (default "Bearer").
func WithGatewayAuthScheme(scheme string) GatewayOption {
	return func(g *Gateway) {
		if scheme != "" {
			g.scheme = scheme
		}
	}
}

// Gateway wraps outbound authenticated calls. It attaches the current access
// token, and on a 401 performs at most one refresh shared across all
// concurrent callers, then retries the rejected request exactly once.
type Gateway struct {
	store     *Store
	refresher Refresher
	transport HTTPDoer
	logger    Logger
	scheme    string
	group     singleflight.Group
}

// NewGateway returns a gateway bound to the given store and refresher.
func NewGateway(store *Store, refresher Refresher, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:     store,
		refresher: refresher,
		transport: http.DefaultClient,
		logger:    defLogger{},
		scheme:    "Bearer",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Do dispatches req with the current access token attached. Non-401 responses
// and transport errors pass through untouched. A 401 on the first attempt
// triggers the shared refresh; a definitive refresh rejection tears down the
// session and returns the original 401, while a transport error reaching the
// refresh endpoint leaves the session intact and propagates the error.
func (g *Gateway) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return g.dispatch(ctx, req, false)
}

func (g *Gateway) dispatch(ctx context.Context, req *http.Request, retried bool) (*http.Response, error) {
	token := g.store.AccessToken()
	if token != "" {
		req.Header.Set("Authorization", g.scheme+" "+token)
	}

	res, err := g.transport.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusUnauthorized || retried {
		return res, nil
	}

	if err := g.awaitRefresh(ctx, token); err != nil {
		if IsAuthorizationExpired(err) {
			g.logger.Warn("token refresh rejected, propagating original response: %v", err)
			return res, nil
		}
		// Transient failure reaching the refresh endpoint: the session is
		// still intact, surface the underlying error to the caller.
		res.Body.Close()
		return nil, err
	}

	retry, err := cloneForRetry(req)
	if err != nil {
		g.logger.Warn("cannot replay request after refresh: %v", err)
		return res, nil
	}

	res.Body.Close()
	g.logger.Debug("retrying %s %s with refreshed token", req.Method, req.URL.Path)
	return g.dispatch(ctx, retry, true)
}

// awaitRefresh resolves once a usable token exists or the refresh has failed
// terminally. All callers that observe a 401 while a refresh is outstanding
// share the same in-flight operation; none issue their own.
func (g *Gateway) awaitRefresh(ctx context.Context, staleToken string) error {
	// A concurrent caller may have rotated the token between our dispatch and
	// this 401 being observed.
	if current := g.store.AccessToken(); current != "" && current != staleToken {
		return nil
	}

	_, err, _ := g.group.Do("refresh", func() (any, error) {
		if current := g.store.AccessToken(); current != "" && current != staleToken {
			return nil, nil
		}

		generation, err := g.store.BeginRefresh()
		if err != nil {
			return nil, err
		}

		res, err := g.refresher.Refresh(ctx, g.store.RefreshToken())
		if err != nil {
			// Only a definitive rejection of the refresh token ends the
			// session. A transport error unwinds the refresh and leaves the
			// session intact so a later call can try again.
			if !IsAuthorizationExpired(err) {
				g.store.AbortRefresh(generation)
				return nil, err
			}
			g.store.FailRefresh(err.Error())
			return nil, goerrors.Wrap(err, ErrAuthorizationExpired.Category, ErrAuthorizationExpired.Message).
				WithTextCode(textCodeAuthorizationExpired)
		}

		if err := g.store.CompleteRefresh(generation, res.AccessToken, res.PermittedModules); err != nil {
			g.store.FailRefresh(err.Error())
			return nil, goerrors.Wrap(err, ErrAuthorizationExpired.Category, ErrAuthorizationExpired.Message).
				WithTextCode(textCodeAuthorizationExpired)
		}

		return nil, nil
	})

	return err
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, nil
	}

	if req.GetBody == nil {
		return nil, goerrors.New("request body cannot be replayed", goerrors.CategoryBadInput)
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to rewind request body")
	}
	clone.Body = body

	return clone, nil
}
