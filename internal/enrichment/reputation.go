package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

// HTTPClient abstracts *http.Client for test interception.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ReputationService performs best-effort IP reputation and user profile
// lookups against external HTTP services. Callers unwrap every failure to a
// neutral default; this type only classifies and rate-limits. The shared
// limiter keeps burst enrichment from hammering the upstreams.
type ReputationService struct {
	ipURL      string
	profileURL string
	httpClient HTTPClient
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewReputationService builds the lookup clients from config.
func NewReputationService(cfg config.ReputationConfig, logger *zap.Logger) *ReputationService {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &ReputationService{
		ipURL:      cfg.IPReputationURL,
		profileURL: cfg.UserProfileURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		log:        logger.Named("enrichment.reputation"),
	}
}

// LookupIP implements schemas.ReputationClient. An unset endpoint, limiter
// rejection, or any transport/decoding failure returns a wrapped
// ErrReputationLookup; the caller degrades to the neutral category.
func (s *ReputationService) LookupIP(ctx context.Context, ip string) (schemas.IPReputation, error) {
	if s.ipURL == "" {
		return schemas.IPReputation{}, fmt.Errorf("%w: no ip reputation endpoint configured", schemas.ErrReputationLookup)
	}

	var payload struct {
		Category string `json:"category"`
	}
	if err := s.getJSON(ctx, s.ipURL+"?ip="+url.QueryEscape(ip), &payload); err != nil {
		return schemas.IPReputation{}, err
	}

	switch schemas.ReputationCategory(payload.Category) {
	case schemas.ReputationMalicious, schemas.ReputationSuspicious, schemas.ReputationNeutral:
		return schemas.IPReputation{Category: schemas.ReputationCategory(payload.Category)}, nil
	default:
		return schemas.IPReputation{Category: schemas.ReputationNeutral}, nil
	}
}

// LookupUser implements schemas.UserProfileClient with the same degradation
// contract as LookupIP.
func (s *ReputationService) LookupUser(ctx context.Context, userID string) (schemas.UserProfile, error) {
	if s.profileURL == "" {
		return schemas.UserProfile{}, fmt.Errorf("%w: no user profile endpoint configured", schemas.ErrReputationLookup)
	}

	var profile schemas.UserProfile
	if err := s.getJSON(ctx, s.profileURL+"?user="+url.QueryEscape(userID), &profile); err != nil {
		return schemas.UserProfile{}, err
	}
	return profile, nil
}

func (s *ReputationService) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", schemas.ErrReputationLookup, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", schemas.ErrReputationLookup, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Debug("Lookup transport failure", zap.Error(err))
		return fmt.Errorf("%w: %v", schemas.ErrReputationLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: lookup returned status %d", schemas.ErrReputationLookup, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", schemas.ErrReputationLookup, err)
	}
	return nil
}
