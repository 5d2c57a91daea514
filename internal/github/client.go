package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"branchwarden/internal/logging"
	"branchwarden/internal/ratelimit"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client is the capability wrapper around the GitHub REST and GraphQL APIs
// used by the cleanup. Both API clients share one HTTP transport stack
// (auth, secondary rate limit waiting, request budget, verbose logging).
type Client struct {
	Client  *github.Client
	GraphQL *githubv4.Client
	HTTP    *http.Client
	Budget  *ratelimit.Budget

	logger *zap.Logger
}

type options struct {
	token          string
	appID          int64
	installationID int64
	privateKeyPath string
	verbose        bool
	logger         *zap.Logger
	budget         *ratelimit.Budget
	baseURL        string
	base           http.RoundTripper
	secondaryLimit time.Duration
}

type Option func(*options)

// WithToken authenticates with a static access token.
func WithToken(token string) Option {
	return func(o *options) { o.token = strings.TrimSpace(token) }
}

// WithAppInstallation authenticates as a GitHub App installation using the
// private key at keyPath. It takes precedence over WithToken.
func WithAppInstallation(appID, installationID int64, keyPath string) Option {
	return func(o *options) {
		o.appID = appID
		o.installationID = installationID
		o.privateKeyPath = keyPath
	}
}

// WithVerbose logs one line per API request and response (with latency).
func WithVerbose(enabled bool) Option {
	return func(o *options) { o.verbose = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBudget shares a request budget across clients.
func WithBudget(b *ratelimit.Budget) Option {
	return func(o *options) { o.budget = b }
}

// WithBaseURL points the client at another REST root, such as GitHub
// Enterprise Server (https://host/api/v3/) or a test server. The GraphQL
// endpoint is derived from it.
func WithBaseURL(restURL string) Option {
	return func(o *options) { o.baseURL = strings.TrimSpace(restURL) }
}

// WithBaseTransport replaces http.DefaultTransport at the bottom of the stack.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// loggingRoundTripper emits one log entry per request and response when
// verbose logging is enabled.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Info("github api request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Info("github api error", zap.Duration("elapsed", dur), zap.Error(err))
		return resp, err
	}
	t.logger.Info("github api response",
		zap.Int("status", resp.StatusCode),
		zap.String("status_text", http.StatusText(resp.StatusCode)),
		zap.Duration("elapsed", dur),
	)
	return resp, err
}

func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{secondaryLimit: time.Hour}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	o.logger = logging.OrNop(o.logger)
	if o.budget == nil {
		o.budget = ratelimit.NewBudget()
	}

	transport := o.base
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}
	transport = &ratelimit.Transport{Base: transport, Budget: o.budget}

	waiter, err := github_ratelimit.NewRateLimitWaiter(transport, github_ratelimit.WithSingleSleepLimit(o.secondaryLimit, nil))
	if err != nil {
		return nil, fmt.Errorf("github client: rate limit waiter: %w", err)
	}
	transport = waiter

	switch {
	case o.appID != 0:
		itr, err := ghinstallation.NewKeyFromFile(transport, o.appID, o.installationID, o.privateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("github client: app installation transport: %w", err)
		}
		if o.baseURL != "" {
			itr.BaseURL = strings.TrimSuffix(o.baseURL, "/")
		}
		transport = itr
	case o.token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}

	hc := &http.Client{Transport: transport}

	rest := github.NewClient(hc)
	gql := githubv4.NewClient(hc)
	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github client: invalid base URL: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		rest.BaseURL = u
		rest.UploadURL = u

		endpoint, err := graphqlEndpoint(u)
		if err != nil {
			return nil, fmt.Errorf("github client: %w", err)
		}
		gql = githubv4.NewEnterpriseClient(endpoint.String(), hc)
	}

	return &Client{
		Client:  rest,
		GraphQL: gql,
		HTTP:    hc,
		Budget:  o.budget,
		logger:  o.logger,
	}, nil
}

// graphqlEndpoint maps a REST root onto its GraphQL endpoint.
//
//	https://api.github.com/   -> https://api.github.com/graphql
//	https://host/api/v3/      -> https://host/api/graphql
func graphqlEndpoint(base *url.URL) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("graphql: base url is nil")
	}

	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/api/v3") {
		u.Path = strings.TrimSuffix(path, "/v3") + "/graphql"
		return &u, nil
	}
	u.Path = "/graphql"
	return &u, nil
}
