package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"

	"serp-go/pkg/logger"
	"serp-go/pkg/serp"
)

const (
	serpLivePath   = "/v3/serp/google/organic/live/advanced"
	volumeLivePath = "/v3/keywords_data/google_ads/search_volume/live"

	maxVolumeKeywords = 1000

	breakerMinRequests      = 5
	breakerFailureThreshold = 0.6
)

// DataForSEOClient talks to the DataForSEO v3 REST API over fasthttp
type DataForSEOClient struct {
	config     Config
	httpClient *fasthttp.Client
	authHeader string
	parser     *Parser
	retry      *SimpleRetry
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger

	totalRequests  uint64
	failedRequests uint64
}

// NewDataForSEOClient validates cfg and builds a client with its own connection pool
func NewDataForSEOClient(cfg Config) (*DataForSEOClient, error) {
	return NewDataForSEOClientWithHTTP(cfg, &fasthttp.Client{
		Name:                "serp-go/1.0",
		MaxConnsPerHost:     64,
		MaxIdleConnDuration: 90 * time.Second,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
	})
}

// NewDataForSEOClientWithHTTP uses a caller-supplied fasthttp client
func NewDataForSEOClientWithHTTP(cfg Config, httpClient *fasthttp.Client) (*DataForSEOClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Login == "" || cfg.Password == "" {
		return nil, fmt.Errorf("DataForSEO login and password are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Login + ":" + cfg.Password))

	client := &DataForSEOClient{
		config:     cfg,
		httpClient: httpClient,
		authHeader: "Basic " + credentials,
		parser:     NewParser(),
		retry:      NewSimpleRetry(cfg.MaxRetries, cfg.RetryDelay),
		log:        logger.GetLogger().WithField("component", "dataforseo_client"),
	}

	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dataforseo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureThreshold
		},
		// request errors (bad auth, invalid task) say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			client.log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	client.log.WithFields(map[string]interface{}{
		"endpoint": logger.MaskEndpoint(cfg.BaseURL),
		"login":    logger.MaskSecret(cfg.Login),
	}).Debug("DataForSEO client created")

	return client, nil
}

// FetchSERP returns the current organic SERP for req.Keyword
func (c *DataForSEOClient) FetchSERP(ctx context.Context, req SERPRequest) (*serp.Snapshot, error) {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}

	var snapshot *serp.Snapshot
	err := c.call(ctx, serpLivePath, []SERPRequest{req}, func(body []byte) error {
		parsed, err := c.parser.ParseSERP(body)
		if err != nil {
			return err
		}
		snapshot = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch SERP for %q: %w", req.Keyword, err)
	}

	if snapshot.Keyword == "" {
		snapshot.Keyword = req.Keyword
	}

	c.log.WithFields(map[string]interface{}{
		"keyword": req.Keyword,
		"items":   len(snapshot.Items),
	}).Debug("SERP fetched")

	return snapshot, nil
}

// SearchVolume returns monthly search volume for req.Keywords
func (c *DataForSEOClient) SearchVolume(ctx context.Context, req VolumeRequest) ([]KeywordVolume, error) {
	if len(req.Keywords) == 0 {
		return []KeywordVolume{}, nil
	}
	if len(req.Keywords) > maxVolumeKeywords {
		return nil, fmt.Errorf("at most %d keywords per request, got %d", maxVolumeKeywords, len(req.Keywords))
	}

	var volumes []KeywordVolume
	err := c.call(ctx, volumeLivePath, []VolumeRequest{req}, func(body []byte) error {
		parsed, err := c.parser.ParseSearchVolume(body)
		if err != nil {
			return err
		}
		volumes = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch search volume: %w", err)
	}
	return volumes, nil
}

// BreakerState reports the circuit breaker state: "closed", "half-open" or "open"
func (c *DataForSEOClient) BreakerState() string {
	return c.breaker.State().String()
}

// Stats returns request counters since the client was created
func (c *DataForSEOClient) Stats() (total, failed uint64) {
	return atomic.LoadUint64(&c.totalRequests), atomic.LoadUint64(&c.failedRequests)
}

// call posts payload to path with retries and hands each 200 body to handle.
// Parse errors are returned through the retry loop so provider-side task
// failures (50xxx) are retried as well. The whole retry sequence counts as
// one request for the circuit breaker.
func (c *DataForSEOClient) call(ctx context.Context, path string, payload interface{}, handle func([]byte) error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	atomic.AddUint64(&c.totalRequests, 1)
	start := time.Now()

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retry.Execute(ctx, func() error {
			respBody, err := c.post(ctx, path, body)
			if err != nil {
				return err
			}
			return handle(respBody)
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("DataForSEO temporarily unavailable: %w", err)
	}

	if err != nil {
		atomic.AddUint64(&c.failedRequests, 1)
		c.log.WithError(err).WithField("path", path).Warn("DataForSEO request failed")
		return err
	}

	c.log.WithFields(map[string]interface{}{
		"path":        path,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("DataForSEO request completed")
	return nil
}

func (c *DataForSEOClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(c.config.BaseURL, "/") + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	req.SetBody(body)

	if err := c.httpClient.DoTimeout(req, resp, c.timeout(ctx)); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()[:min(len(resp.Body()), 200)]),
		}
	}

	// resp is released on return, so the body must be copied
	return append([]byte(nil), resp.Body()...), nil
}

// timeout is the configured timeout capped by the context deadline
func (c *DataForSEOClient) timeout(ctx context.Context) time.Duration {
	timeout := c.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}
