package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gruppetto/internal/constants"
)

// StravaProvider implements ActivityProvider against the Strava v3 API
type StravaProvider struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Client       *http.Client

	// Client-side pacing so a burst of batches cannot blow the short
	// quota window on its own.
	limiter *rate.Limiter
}

// NewStravaProvider creates a new Strava API provider
func NewStravaProvider(baseURL, tokenURL, clientID, clientSecret string) *StravaProvider {
	return &StravaProvider{
		BaseURL:      baseURL,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// ListActivities fetches one page of the athlete's activities
func (p *StravaProvider) ListActivities(ctx context.Context, accessToken string, params ListParams) (*ActivityPage, error) {
	if err := params.Validate(); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: err.Error(),
		}
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(params.PageSize))
	if params.After != nil {
		q.Set("after", strconv.FormatInt(params.After.Unix(), 10))
	}
	if params.Before != nil {
		q.Set("before", strconv.FormatInt(params.Before.Unix(), 10))
	}

	endpoint := "/athlete/activities?" + q.Encode()

	var activities []ActivitySummary
	quota, err := p.doGET(ctx, endpoint, accessToken, &activities)
	if err != nil {
		return nil, err
	}

	return &ActivityPage{
		Activities: activities,
		Quota:      quota,
	}, nil
}

// GetActivity fetches the detail payload for one activity
func (p *StravaProvider) GetActivity(ctx context.Context, accessToken string, id int64) (*ActivityDetail, error) {
	if id <= 0 {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "activity id must be positive",
		}
	}

	endpoint := fmt.Sprintf("/activities/%d", id)

	var detail ActivityDetail
	if _, err := p.doGET(ctx, endpoint, accessToken, &detail); err != nil {
		return nil, err
	}

	return &detail, nil
}

// RefreshToken exchanges a refresh token for a new credential pair
func (p *StravaProvider) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeRefreshFailed,
			Message: "refresh token is empty",
		}
	}

	form := url.Values{}
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create token request",
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to read token response body",
			Err:     readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Any non-2xx on the token endpoint is an authorization failure:
		// the refresh token is revoked or the app credentials are wrong.
		return nil, &ProviderError{
			Code:    constants.ErrCodeRefreshFailed,
			Message: fmt.Sprintf("Token refresh failed with HTTP %d", resp.StatusCode),
			Details: string(bodyBytes),
		}
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeMalformedPayload,
			Message: "Failed to decode token response",
			Details: string(bodyBytes),
			Err:     err,
		}
	}

	return &TokenPair{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    time.Unix(raw.ExpiresAt, 0),
	}, nil
}

// ============================================================================
// HTTP Helper Methods
// ============================================================================

// doGET performs a GET request with authentication and returns the quota
// counters observed on the response.
func (p *StravaProvider) doGET(ctx context.Context, endpoint string, accessToken string, result interface{}) (*QuotaUsage, error) {
	if accessToken == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidToken,
			Message: "access token is empty",
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{
				Code:    constants.ErrCodeNetworkError,
				Message: "request cancelled while pacing",
				Err:     err,
			}
		}
	}

	// Build request
	reqURL := p.BaseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create request",
			Err:     err,
		}
	}

	// Set headers
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	quota := parseQuotaHeaders(resp.Header)

	// Handle HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return quota, p.buildHTTPError(resp.StatusCode, endpoint, string(bodyBytes))
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return quota, &ProviderError{
			Code:    constants.ErrCodeMalformedPayload,
			Message: "Failed to decode response",
			Err:     err,
		}
	}

	return quota, nil
}

// parseQuotaHeaders reads the upstream rate-limit counters. Format is
// "window,daily" on both the usage and limit headers.
func parseQuotaHeaders(h http.Header) *QuotaUsage {
	usage := h.Get("X-RateLimit-Usage")
	limit := h.Get("X-RateLimit-Limit")
	if usage == "" {
		return nil
	}

	q := &QuotaUsage{}
	if parts := strings.SplitN(usage, ",", 2); len(parts) == 2 {
		q.WindowUsed, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
		q.DailyUsed, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	if parts := strings.SplitN(limit, ",", 2); len(parts) == 2 {
		q.WindowLimit, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
		q.DailyLimit, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return q
}

// buildHTTPError creates appropriate error based on status code
func (p *StravaProvider) buildHTTPError(statusCode int, endpoint string, body string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return &ProviderError{
			Code:    constants.ErrCodeAuthenticationFailed,
			Message: fmt.Sprintf("Authentication failed for endpoint %s", endpoint),
			Details: body,
		}
	case http.StatusNotFound:
		return &ProviderError{
			Code:    constants.ErrCodeResourceNotFound,
			Message: fmt.Sprintf("Resource not found: %s", endpoint),
			Details: body,
		}
	case http.StatusTooManyRequests:
		return &ProviderError{
			Code:    constants.ErrCodeRateLimited,
			Message: constants.GetErrorMessage(constants.ErrCodeRateLimited),
			Details: body,
		}
	case http.StatusBadRequest:
		return &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: fmt.Sprintf("Bad request to %s", endpoint),
			Details: body,
		}
	default:
		return &ProviderError{
			Code:    constants.ErrCodeUpstreamError,
			Message: fmt.Sprintf("HTTP %d from %s", statusCode, endpoint),
			Details: body,
		}
	}
}
