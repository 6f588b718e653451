package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/joho/godotenv"

	"github.com/okian/modelscout/pkg/logger"
)

const (
	DefaultEndpoint  = "https://artificialanalysis.ai/api/v2/data/llms/models"
	DefaultKeyEnv    = "AA_API_KEY"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTries  = 3
	maxResponseBytes = 32 << 20
)

// HTTPSource pulls model metrics from the upstream JSON API.
type HTTPSource struct {
	endpoint string
	keyEnv   string
	envFile  string
	apiKey   string
	timeout  time.Duration
	maxTries uint
	interval time.Duration
	client   *http.Client
	log      logger.Logger
}

var _ Source = (*HTTPSource)(nil)

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithEndpoint overrides the upstream URL.
func WithEndpoint(url string) HTTPOption {
	return func(s *HTTPSource) {
		if url != "" {
			s.endpoint = url
		}
	}
}

// WithAPIKey sets the key directly, bypassing the environment.
func WithAPIKey(key string) HTTPOption {
	return func(s *HTTPSource) { s.apiKey = key }
}

// WithKeyEnv names the environment variable holding the key.
func WithKeyEnv(name string) HTTPOption {
	return func(s *HTTPSource) {
		if name != "" {
			s.keyEnv = name
		}
	}
}

// WithEnvFile names a dotenv file consulted when the variable is unset.
func WithEnvFile(path string) HTTPOption {
	return func(s *HTTPSource) { s.envFile = path }
}

// WithTimeout bounds the whole fetch, retries included.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxTries sets the attempt budget.
func WithMaxTries(n int) HTTPOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.maxTries = uint(n)
		}
	}
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.log = l
		}
	}
}

// NewHTTPSource creates an upstream source.
func NewHTTPSource(opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		endpoint: DefaultEndpoint,
		keyEnv:   DefaultKeyEnv,
		envFile:  ".env",
		timeout:  DefaultTimeout,
		maxTries: DefaultMaxTries,
		interval: 500 * time.Millisecond,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("source.http")
	}
	return s
}

// Name implements Source.
func (s *HTTPSource) Name() string { return NameArtificialAnalysis }

// Fetch returns the upstream records. Every failure wraps ErrUnavailable.
func (s *HTTPSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	key, err := s.resolveKey()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.interval

	body, err := backoff.Retry(ctx, func() ([]byte, error) { return s.get(ctx, key) },
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithMaxElapsedTime(s.timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn(ctx, "upstream fetch failed, retrying", logger.Error(err), logger.Duration("backoff", next))
		}),
	)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	records, err := DecodeRecords(body)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "fetched upstream records", logger.Int("records", len(records)))
	return records, nil
}

func (s *HTTPSource) get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: connection error: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode}
		// 429 and 5xx are worth another attempt.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	return data, nil
}

func (s *HTTPSource) resolveKey() (string, error) {
	if key := strings.TrimSpace(s.apiKey); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(s.keyEnv)); key != "" {
		return key, nil
	}
	if s.envFile != "" {
		if vals, err := godotenv.Read(s.envFile); err == nil {
			if key := strings.TrimSpace(vals[s.keyEnv]); key != "" {
				return key, nil
			}
		}
	}
	return "", fmt.Errorf("%w (%s)", ErrMissingAPIKey, s.keyEnv)
}
