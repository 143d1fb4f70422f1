package fakeprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/spotify"
	"golang.org/x/oauth2"
)

const AuthURL = "https://accounts.spotify.test/authorize"

// Resource kinds served by the fake
const (
	TopTracks      = "top-tracks"
	TopArtists     = "top-artists"
	RecentlyPlayed = "recently-played"
)

// ResourceCall records the parameters of the last resource request
type ResourceCall struct {
	Kind        string
	AccessToken string
	Limit       int
	TimeRange   spotify.TimeRange
}

// Provider is a programmable in-process stand-in for the Spotify accounts service and
// Web API. Unknown access tokens are answered with a 401 like the real API.
type Provider struct {
	profiles  map[string]json.RawMessage
	expired   map[string]struct{}
	refreshes map[string]*oauth2.Token
	codes     map[string]*oauth2.Token
	items     map[string][]json.RawMessage
	probeErr  error
	resErr    error
	lastCall  ResourceCall

	probeHook   func()
	refreshHook func()

	probeCalls    atomic.Int64
	refreshCalls  atomic.Int64
	exchangeCalls atomic.Int64

	lock sync.RWMutex
}

func New() *Provider {
	return &Provider{
		profiles:  make(map[string]json.RawMessage),
		expired:   make(map[string]struct{}),
		refreshes: make(map[string]*oauth2.Token),
		codes:     make(map[string]*oauth2.Token),
		items:     make(map[string][]json.RawMessage),
	}
}

// AddAccessToken makes accessToken valid, answering the probe with profile
func (p *Provider) AddAccessToken(accessToken string, profile json.RawMessage) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.profiles[accessToken] = profile
	delete(p.expired, accessToken)
}

// ExpireAccessToken makes the provider report accessToken as expired
func (p *Provider) ExpireAccessToken(accessToken string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.expired[accessToken] = struct{}{}
}

// AddRefreshToken makes refreshToken exchangeable for tok
func (p *Provider) AddRefreshToken(refreshToken string, tok *oauth2.Token) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.refreshes[refreshToken] = tok
}

// AddCode makes an authorization code exchangeable for tok
func (p *Provider) AddCode(code string, tok *oauth2.Token) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.codes[code] = tok
}

func (p *Provider) SetItems(kind string, items []json.RawMessage) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.items[kind] = items
}

// FailProbe makes every probe fail with err; nil restores normal behaviour
func (p *Provider) FailProbe(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.probeErr = err
}

// FailResources makes every resource call fail with err; nil restores normal behaviour
func (p *Provider) FailResources(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.resErr = err
}

// SetProbeHook runs fn at the start of every probe
func (p *Provider) SetProbeHook(fn func()) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.probeHook = fn
}

// SetRefreshHook runs fn at the start of every refresh
func (p *Provider) SetRefreshHook(fn func()) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.refreshHook = fn
}

func (p *Provider) ProbeCalls() int64 {
	return p.probeCalls.Load()
}

func (p *Provider) RefreshCalls() int64 {
	return p.refreshCalls.Load()
}

func (p *Provider) ExchangeCalls() int64 {
	return p.exchangeCalls.Load()
}

func (p *Provider) LastResourceCall() ResourceCall {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.lastCall
}

func (p *Provider) AuthCodeURL(state string) string {
	q := url.Values{
		"client_id":     {"fake-client"},
		"response_type": {"code"},
	}
	if state != "" {
		q.Set("state", state)
	}
	return AuthURL + "?" + q.Encode()
}

func (p *Provider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	p.exchangeCalls.Add(1)
	p.lock.RLock()
	defer p.lock.RUnlock()
	tok, ok := p.codes[code]
	if !ok {
		return nil, spotify.NewExchangeError("Invalid authorization code")
	}
	return copyToken(tok), nil
}

func (p *Provider) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	p.refreshCalls.Add(1)
	p.lock.RLock()
	hook := p.refreshHook
	p.lock.RUnlock()
	if hook != nil {
		hook()
	}

	p.lock.RLock()
	defer p.lock.RUnlock()
	tok, ok := p.refreshes[refreshToken]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "refresh token rejected")
	}
	out := copyToken(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (p *Provider) CurrentUser(_ context.Context, accessToken string) (json.RawMessage, error) {
	p.probeCalls.Add(1)
	p.lock.RLock()
	hook := p.probeHook
	p.lock.RUnlock()
	if hook != nil {
		hook()
	}

	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.probeErr != nil {
		return nil, p.probeErr
	}
	if err := p.checkAccessToken(accessToken); err != nil {
		return nil, err
	}
	return p.profiles[accessToken], nil
}

func (p *Provider) TopTracks(_ context.Context, accessToken string, limit int, timeRange spotify.TimeRange) ([]json.RawMessage, error) {
	return p.resource(ResourceCall{Kind: TopTracks, AccessToken: accessToken, Limit: limit, TimeRange: timeRange})
}

func (p *Provider) TopArtists(_ context.Context, accessToken string, limit int, timeRange spotify.TimeRange) ([]json.RawMessage, error) {
	return p.resource(ResourceCall{Kind: TopArtists, AccessToken: accessToken, Limit: limit, TimeRange: timeRange})
}

func (p *Provider) RecentlyPlayed(_ context.Context, accessToken string, limit int) ([]json.RawMessage, error) {
	return p.resource(ResourceCall{Kind: RecentlyPlayed, AccessToken: accessToken, Limit: limit})
}

func (p *Provider) resource(call ResourceCall) ([]json.RawMessage, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.lastCall = call
	if p.resErr != nil {
		return nil, p.resErr
	}
	if err := p.checkAccessToken(call.AccessToken); err != nil {
		return nil, err
	}
	items := p.items[call.Kind]
	if items == nil {
		items = []json.RawMessage{}
	}
	if len(items) > call.Limit {
		items = items[:call.Limit]
	}
	return items, nil
}

// checkAccessToken must be called with the lock held
func (p *Provider) checkAccessToken(accessToken string) error {
	if _, expired := p.expired[accessToken]; expired {
		return &spotify.APIError{StatusCode: http.StatusUnauthorized, Message: "The access token expired"}
	}
	if _, ok := p.profiles[accessToken]; !ok {
		return &spotify.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid access token"}
	}
	return nil
}

func copyToken(tok *oauth2.Token) *oauth2.Token {
	out := *tok
	return &out
}
