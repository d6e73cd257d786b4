// Last.fm API client
package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	lastfmBaseURL = "https://ws.audioscrobbler.com/2.0/"
	breakerName   = "lastfm-api"
)

// Last.fm methods used by the importer.
const (
	MethodLovedTracks   = "user.getLovedTracks"
	MethodArtistTracks  = "user.getArtistTracks"
	MethodLibraryTracks = "library.getTracks"
	MethodMobileSession = "auth.getMobileSession"
	MethodLove          = "track.love"
	MethodUnlove        = "track.unlove"
)

// Last.fm error codes, see https://www.last.fm/api/errorcodes
const (
	ErrCodeInvalidService    = 2
	ErrCodeInvalidMethod     = 3
	ErrCodeAuthFailed        = 4
	ErrCodeInvalidFormat     = 5
	ErrCodeInvalidParameters = 6
	ErrCodeOperationFailed   = 8
	ErrCodeInvalidSession    = 9
	ErrCodeInvalidAPIKey     = 10
	ErrCodeServiceOffline    = 11
	ErrCodeTemporary         = 16
	ErrCodeRateLimited       = 29
)

// RemoteError is a failed Last.fm call: either an error payload or an unexpected HTTP status.
type RemoteError struct {
	Method     string
	Code       int
	Message    string
	StatusCode int
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lastfm %s: error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("lastfm %s: status %d", e.Method, e.StatusCode)
}

// Is makes every [RemoteError] match [shared.ErrRemote].
func (e *RemoteError) Is(target error) bool {
	return target == shared.ErrRemote
}

// Temporary reports whether retrying later could succeed.
func (e *RemoteError) Temporary() bool {
	switch e.Code {
	case ErrCodeOperationFailed, ErrCodeServiceOffline, ErrCodeTemporary, ErrCodeRateLimited:
		return true
	case 0:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// LastfmOpts configures a [LastfmService].
type LastfmOpts struct {
	APIKey     string
	Secret     string
	BaseURL    string       // defaults to the public API root
	HTTPClient *http.Client // defaults to a client with Timeout
	Timeout    time.Duration
	RateLimit  float64 // requests per second, <= 0 disables pacing
	Logger     *log.Logger
}

// LastfmService is the Last.fm transport: parameter signing, pacing, circuit breaking and error payload checks.
type LastfmService struct {
	apiKey     string
	secret     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*APIResponse]
	logger     *log.Logger
}

// NewLastfmService creates a new Last.fm client.
func NewLastfmService(opts LastfmOpts) (*LastfmService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: lastfm api_key", shared.ErrMissingCredentials)
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("%w: lastfm secret", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = lastfmBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	s := &LastfmService{
		apiKey:     opts.APIKey,
		secret:     opts.Secret,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(opts.Logger, "service", "lastfm"),
	}
	s.breaker = s.newBreaker()
	return s, nil
}

// newBreaker opens after five consecutive transport failures and probes again after 30 seconds.
//
// Caller mistakes (unknown user, bad parameters) and cancellations do not count against the service.
func (s *LastfmService) newBreaker() *gobreaker.CircuitBreaker[*APIResponse] {
	breakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*APIResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var re *RemoteError
			if errors.As(err, &re) {
				return !re.Temporary()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Name returns the service name.
func (s *LastfmService) Name() string {
	return "Last.fm"
}

// LovedTracks fetches a user's loved tracks in a single request of up to limit entries.
func (s *LastfmService) LovedTracks(ctx context.Context, username string, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	params := url.Values{}
	params.Set("user", username)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp LovedTracksResponse
	if err := s.get(ctx, MethodLovedTracks, params, &resp); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return resp.LovedTracks.Remote(), resp.LovedTracks.Attr.toMetadata(), nil
}

// ArtistTracks fetches one page of a user's scrobbled tracks by one artist.
func (s *LastfmService) ArtistTracks(ctx context.Context, username, artist string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	params := pageParams(page, limit)
	params.Set("user", username)
	params.Set("artist", artist)

	var resp ArtistTracksResponse
	if err := s.get(ctx, MethodArtistTracks, params, &resp); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return resp.ArtistTracks.Remote(), resp.ArtistTracks.Attr.toMetadata(), nil
}

// LibraryTracks fetches one page of a user's whole track library.
func (s *LastfmService) LibraryTracks(ctx context.Context, username string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	params := pageParams(page, limit)
	params.Set("user", username)

	var resp LibraryTracksResponse
	if err := s.get(ctx, MethodLibraryTracks, params, &resp); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return resp.Tracks.Remote(), resp.Tracks.Attr.toMetadata(), nil
}

// MobileSession exchanges a username and password for a session key (auth.getMobileSession).
func (s *LastfmService) MobileSession(ctx context.Context, username, password string) (*LastfmSession, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", shared.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)

	resp, err := s.call(ctx, http.MethodPost, MethodMobileSession, params, "", true)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.Code == ErrCodeAuthFailed {
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
		return nil, err
	}

	var session MobileSessionResponse
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if session.Session.Key == "" {
		return nil, fmt.Errorf("%w: no session key in response", shared.ErrAuthFailed)
	}

	s.logger.Info("logged into Last.fm", "user", session.Session.Name)
	return &session.Session, nil
}

// LoveTrack marks a track as loved (track.love) or clears the mark (track.unlove) for the session's user.
//
// An unknown track is reported as [shared.ErrTrackNotFound] and a rejected session key as
// [shared.ErrInvalidCredentials].
func (s *LastfmService) LoveTrack(ctx context.Context, sessionKey, artist, track string, love bool) error {
	if sessionKey == "" {
		return fmt.Errorf("%w: a session key is required", shared.ErrNotAuthenticated)
	}
	if artist == "" || track == "" {
		return fmt.Errorf("%w: artist and track are required", shared.ErrMissingArgument)
	}

	method := MethodLove
	if !love {
		method = MethodUnlove
	}

	params := url.Values{}
	params.Set("artist", artist)
	params.Set("track", track)

	if _, err := s.call(ctx, http.MethodPost, method, params, sessionKey, true); err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			switch re.Code {
			case ErrCodeInvalidParameters:
				return fmt.Errorf("%w: %s - %s: %w", shared.ErrTrackNotFound, artist, track, err)
			case ErrCodeInvalidSession, ErrCodeAuthFailed:
				return fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
			}
		}
		return err
	}

	s.logger.Info("updated Last.fm loved track", "method", method, "artist", artist, "track", track)
	return nil
}

// Call invokes an arbitrary API method and returns the raw response.
//
// When sessionKey is set the request is signed and sent as a POST.
func (s *LastfmService) Call(ctx context.Context, method string, params map[string]string, sessionKey string) (*APIResponse, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	if sessionKey != "" {
		return s.call(ctx, http.MethodPost, method, values, sessionKey, true)
	}
	return s.call(ctx, http.MethodGet, method, values, "", false)
}

func (s *LastfmService) get(ctx context.Context, method string, params url.Values, result any) error {
	resp, err := s.call(ctx, http.MethodGet, method, params, "", false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrRemote, method, err)
	}
	return nil
}

// call paces, breaks and performs one API request.
func (s *LastfmService) call(ctx context.Context, httpMethod, method string, params url.Values, sessionKey string, signed bool) (*APIResponse, error) {
	params.Set("method", method)
	params.Set("api_key", s.apiKey)
	if sessionKey != "" {
		params.Set("sk", sessionKey)
	}
	if signed {
		params.Set("api_sig", s.sign(params))
	}
	params.Set("format", "json")

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.breaker.Execute(func() (*APIResponse, error) {
		return s.doRequest(ctx, httpMethod, method, params)
	})
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		requestsTotal.WithLabelValues(method, "ok").Inc()
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		requestsTotal.WithLabelValues(method, "rejected").Inc()
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrServiceUnavailable, method, err)
	default:
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, err
	}
}

// doRequest performs the HTTP round trip and checks the error payload, which Last.fm may send with a 200.
func (s *LastfmService) doRequest(ctx context.Context, httpMethod, method string, params url.Values) (*APIResponse, error) {
	var (
		req *http.Request
		err error
	)

	if httpMethod == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("lastfm request", "method", method, "page", params.Get("page"))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: request failed: %v", shared.ErrRemote, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %v", shared.ErrRemote, method, err)
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	var envelope errorEnvelope
	if apiResp.IsJSON && json.Unmarshal(body, &envelope) == nil && envelope.Error != 0 {
		return nil, &RemoteError{Method: method, Code: envelope.Error, Message: envelope.Message, StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Method: method, StatusCode: resp.StatusCode}
	}

	return apiResp, nil
}

// sign computes api_sig: md5 of every parameter name and value in name order, followed by the secret.
//
// format and callback are excluded.
func (s *LastfmService) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" || k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(s.secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func pageParams(page, limit int) url.Values {
	params := url.Values{}
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}
