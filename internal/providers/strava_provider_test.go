package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gruppetto/internal/constants"
)

func newTestProvider(apiURL, tokenURL string) *StravaProvider {
	return NewStravaProvider(apiURL, tokenURL, "client-id", "client-secret")
}

func TestListActivities_ParsesPageAndQuota(t *testing.T) {
	var gotQuery string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-RateLimit-Usage", "42,310")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		fmt.Fprint(w, `[
			{"id": 101, "name": "City Marathon", "sport_type": "Run", "workout_type": 1,
			 "distance": 42195.0, "moving_time": 10800, "elapsed_time": 10950,
			 "total_elevation_gain": 120.5, "start_date": "2026-04-12T09:00:00Z"},
			{"id": 102, "name": "Easy spin", "sport_type": "Ride", "workout_type": null,
			 "distance": 20000.0, "moving_time": 2400, "elapsed_time": 2500,
			 "total_elevation_gain": 80.0, "start_date": "2026-04-13T08:00:00Z"}
		]`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL+"/token")
	after := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	page, err := provider.ListActivities(context.Background(), "token-abc", ListParams{
		PageSize: 30,
		After:    &after,
	})
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}

	if gotAuth != "Bearer token-abc" {
		t.Errorf("Expected a bearer header, got %q", gotAuth)
	}
	wantQuery := fmt.Sprintf("after=%d&per_page=30", after.Unix())
	if gotQuery != wantQuery {
		t.Errorf("Expected query %q, got %q", wantQuery, gotQuery)
	}

	if len(page.Activities) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(page.Activities))
	}
	first := page.Activities[0]
	if first.ID != 101 || first.Name != "City Marathon" {
		t.Errorf("Unexpected first activity: %+v", first)
	}
	if first.WorkoutType == nil || *first.WorkoutType != 1 {
		t.Error("Expected workout_type 1 on the first activity")
	}
	if page.Activities[1].WorkoutType != nil {
		t.Error("Expected a null workout_type to decode as nil")
	}

	if page.Quota == nil {
		t.Fatal("Expected quota counters from the response headers")
	}
	if page.Quota.WindowUsed != 42 || page.Quota.DailyUsed != 310 {
		t.Errorf("Unexpected usage counters: %+v", page.Quota)
	}
	if page.Quota.WindowLimit != 100 || page.Quota.DailyLimit != 1000 {
		t.Errorf("Unexpected limit counters: %+v", page.Quota)
	}
}

func TestListActivities_BeforeCursor(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL+"/token")
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	page, err := provider.ListActivities(context.Background(), "token-abc", ListParams{
		PageSize: 50,
		Before:   &before,
	})
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(page.Activities) != 0 {
		t.Errorf("Expected an empty page, got %d items", len(page.Activities))
	}
	wantQuery := fmt.Sprintf("before=%d&per_page=50", before.Unix())
	if gotQuery != wantQuery {
		t.Errorf("Expected query %q, got %q", wantQuery, gotQuery)
	}
	if page.Quota != nil {
		t.Error("Expected no quota without usage headers")
	}
}

func TestListActivities_RejectsBothCursors(t *testing.T) {
	provider := newTestProvider("http://unused", "http://unused/token")
	now := time.Now()

	_, err := provider.ListActivities(context.Background(), "token-abc", ListParams{
		PageSize: 30,
		After:    &now,
		Before:   &now,
	})
	if ErrorCode(err) != constants.ErrCodeInvalidDataFormat {
		t.Errorf("Expected %s, got %v", constants.ErrCodeInvalidDataFormat, err)
	}
}

func TestListActivities_EmptyTokenRefusedLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL+"/token")
	_, err := provider.ListActivities(context.Background(), "", ListParams{PageSize: 30})
	if ErrorCode(err) != constants.ErrCodeInvalidToken {
		t.Errorf("Expected %s, got %v", constants.ErrCodeInvalidToken, err)
	}
	if called {
		t.Error("Expected no upstream call without a token")
	}
}

func TestListActivities_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		status   int
		wantCode string
	}{
		{http.StatusUnauthorized, constants.ErrCodeAuthenticationFailed},
		{http.StatusTooManyRequests, constants.ErrCodeRateLimited},
		{http.StatusBadRequest, constants.ErrCodeInvalidDataFormat},
		{http.StatusInternalServerError, constants.ErrCodeUpstreamError},
	}

	for _, c := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			fmt.Fprint(w, `{"message": "nope"}`)
		}))

		provider := newTestProvider(server.URL, server.URL+"/token")
		_, err := provider.ListActivities(context.Background(), "token-abc", ListParams{PageSize: 30})
		if ErrorCode(err) != c.wantCode {
			t.Errorf("HTTP %d: expected %s, got %v", c.status, c.wantCode, err)
		}
		server.Close()
	}
}

func TestGetActivity_ParsesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/101" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"id": 101, "name": "City Marathon", "sport_type": "Run", "workout_type": 1,
			"distance": 42195.0, "moving_time": 10800, "elapsed_time": 10950,
			"start_date": "2026-04-12T09:00:00Z",
			"description": "Negative split", "calories": 2900.0,
			"average_heartrate": 162.4, "max_heartrate": 181.0,
			"average_cadence": 88.5, "gear_id": "g123",
			"splits_metric": [
				{"distance": 1000.0, "elapsed_time": 255, "elevation_difference": 2.0, "split": 1},
				{"distance": 1000.0, "elapsed_time": 252, "elevation_difference": -1.0, "split": 2}
			]
		}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL+"/token")
	detail, err := provider.GetActivity(context.Background(), "token-abc", 101)
	if err != nil {
		t.Fatalf("GetActivity failed: %v", err)
	}

	if detail.ID != 101 || detail.Description != "Negative split" {
		t.Errorf("Unexpected detail: %+v", detail)
	}
	if detail.AverageHeartrate != 162.4 || detail.GearID != "g123" {
		t.Errorf("Unexpected detail metrics: %+v", detail)
	}
	if len(detail.Splits) != 2 || detail.Splits[1].Split != 2 {
		t.Errorf("Unexpected splits: %+v", detail.Splits)
	}
}

func TestGetActivity_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Record Not Found"}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL+"/token")
	_, err := provider.GetActivity(context.Background(), "token-abc", 999)
	if ErrorCode(err) != constants.ErrCodeResourceNotFound {
		t.Errorf("Expected %s, got %v", constants.ErrCodeResourceNotFound, err)
	}
}

func TestGetActivity_RejectsBadID(t *testing.T) {
	provider := newTestProvider("http://unused", "http://unused/token")
	_, err := provider.GetActivity(context.Background(), "token-abc", 0)
	if ErrorCode(err) != constants.ErrCodeInvalidDataFormat {
		t.Errorf("Expected %s, got %v", constants.ErrCodeInvalidDataFormat, err)
	}
}

func TestRefreshToken_ExchangesPair(t *testing.T) {
	expiresAt := time.Now().Add(6 * time.Hour).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("Unexpected grant_type: %s", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "old-refresh" {
			t.Errorf("Unexpected refresh_token: %s", r.PostForm.Get("refresh_token"))
		}
		if r.PostForm.Get("client_id") != "client-id" || r.PostForm.Get("client_secret") != "client-secret" {
			t.Error("Expected app credentials on the form")
		}
		fmt.Fprintf(w, `{"access_token": "new-access", "refresh_token": "new-refresh", "expires_at": %d}`, expiresAt)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	pair, err := provider.RefreshToken(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if pair.AccessToken != "new-access" || pair.RefreshToken != "new-refresh" {
		t.Errorf("Unexpected pair: %+v", pair)
	}
	if pair.ExpiresAt.Unix() != expiresAt {
		t.Errorf("Expected expiry %d, got %d", expiresAt, pair.ExpiresAt.Unix())
	}
}

func TestRefreshToken_NonSuccessIsRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message": "Bad Request", "errors": [{"field": "refresh_token", "code": "invalid"}]}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL, server.URL)
	_, err := provider.RefreshToken(context.Background(), "revoked")
	if ErrorCode(err) != constants.ErrCodeRefreshFailed {
		t.Errorf("Expected %s, got %v", constants.ErrCodeRefreshFailed, err)
	}
}

func TestRefreshToken_EmptyTokenRefusedLocally(t *testing.T) {
	provider := newTestProvider("http://unused", "http://unused")
	_, err := provider.RefreshToken(context.Background(), "")
	if ErrorCode(err) != constants.ErrCodeRefreshFailed {
		t.Errorf("Expected %s, got %v", constants.ErrCodeRefreshFailed, err)
	}
}
