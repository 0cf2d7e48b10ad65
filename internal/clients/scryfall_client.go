/**
 * Scryfall Client for the card identification worker
 *
 * Resolves a (set code, collector number) pair to card metadata through
 * GET /cards/{set}/{number}. Only the fields the sorter uses are decoded.
 */

package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
	"github.com/adverant/nexus/cardsort-worker/internal/logging"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 1 << 20
	initialBackoff   = 250 * time.Millisecond
	maxBackoff       = 4 * time.Second
)

// ScryfallClient handles communication with the card database
type ScryfallClient struct {
	baseURL    string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// ScryfallConfig holds client configuration
type ScryfallConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int           // Retries for transport failures only
	RateLimit  time.Duration // Minimum spacing between requests, 0 disables
	UserAgent  string
	Logger     *logging.Logger
}

// ScryfallCard is the subset of the Scryfall card object the sorter uses
type ScryfallCard struct {
	Object          string `json:"object"`
	ID              string `json:"id"`
	Name            string `json:"name"`
	Set             string `json:"set"`
	SetName         string `json:"set_name"`
	CollectorNumber string `json:"collector_number"`
	Rarity          string `json:"rarity"`
	Lang            string `json:"lang"`
	TypeLine        string `json:"type_line"`
	ManaCost        string `json:"mana_cost"`
	OracleText      string `json:"oracle_text"`
	ScryfallURI     string `json:"scryfall_uri"`
}

// scryfallError is the body Scryfall returns with non-2xx statuses
type scryfallError struct {
	Object  string `json:"object"`
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Details string `json:"details"`
}

// transportFailure marks errors worth retrying
type transportFailure struct {
	cause error
}

func (t *transportFailure) Error() string { return t.cause.Error() }

// NewScryfallClient creates a new Scryfall client
func NewScryfallClient(cfg *ScryfallConfig) *ScryfallClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "cardsort-worker/1.0"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("scryfall", false)
	}

	return &ScryfallClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  userAgent,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// CardURL builds the lookup URL for a printing
func (c *ScryfallClient) CardURL(setCode, collectorNumber string) string {
	return fmt.Sprintf("%s/cards/%s/%s", c.baseURL,
		url.PathEscape(strings.ToLower(setCode)),
		url.PathEscape(NormalizeCollectorNumber(collectorNumber)))
}

// NormalizeCollectorNumber converts a printed number to Scryfall's form:
// leading zeros dropped, variant suffix lowercased.
func NormalizeCollectorNumber(n string) string {
	n = strings.ToLower(strings.TrimSpace(n))
	i := 0
	for i < len(n)-1 && n[i] == '0' && n[i+1] >= '0' && n[i+1] <= '9' {
		i++
	}
	return n[i:]
}

// GetCardByCollectorNumber fetches one printing. Transport failures are
// retried up to maxRetries times with exponential backoff; not-found and
// service errors are returned immediately.
func (c *ScryfallClient) GetCardByCollectorNumber(ctx context.Context, setCode, collectorNumber string) (*ScryfallCard, error) {
	cardURL := c.CardURL(setCode, collectorNumber)

	for attempt := 1; ; attempt++ {
		card, err := c.fetch(ctx, cardURL, setCode, collectorNumber)
		if err == nil {
			return card, nil
		}

		tf, retryable := err.(*transportFailure)
		if !retryable {
			return nil, err
		}

		c.logger.Warn("Card lookup attempt failed", "url", cardURL, "attempt", attempt, "error", tf.cause)
		if attempt > c.maxRetries {
			return nil, errors.NewTransportError(cardURL, attempt, tf.cause)
		}

		backoff := initialBackoff << uint(attempt-1)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		c.logger.Info("Retrying card lookup", "url", cardURL, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, errors.NewTransportError(cardURL, attempt, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err()))
		}
	}
}

func (c *ScryfallClient) fetch(ctx context.Context, cardURL, setCode, collectorNumber string) (*ScryfallCard, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &transportFailure{cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, errors.NewTransportError(cardURL, 1, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportFailure{cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportFailure{cause: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var card ScryfallCard
		if err := json.Unmarshal(body, &card); err != nil {
			return nil, &transportFailure{cause: fmt.Errorf("malformed response: %w", err)}
		}
		if card.Name == "" {
			return nil, &transportFailure{cause: fmt.Errorf("malformed response: card has no name")}
		}
		return &card, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFoundError(strings.ToUpper(setCode), collectorNumber, errorDetails(body))

	default:
		return nil, errors.NewServiceError(cardURL, resp.StatusCode, errorDetails(body))
	}
}

func errorDetails(body []byte) string {
	var se scryfallError
	if err := json.Unmarshal(body, &se); err != nil {
		return ""
	}
	return se.Details
}
