package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gruppetto/internal/logging"
	"gruppetto/internal/models/dtos/requests"
	"gruppetto/internal/models/dtos/responses"
	"gruppetto/internal/models/gorm"
)

// CreateAccountHandler registers an athlete account for syncing.
func CreateAccountHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.CreateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ExternalID == 0 || req.AccessToken == "" || req.RefreshToken == "" {
			respondWithError(w, http.StatusBadRequest, "external_id, access_token and refresh_token are required")
			return
		}

		ctx := r.Context()

		existing, err := deps.Repo.Accounts.GetByExternalID(ctx, req.ExternalID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to look up account")
			return
		}
		if existing != nil {
			respondWithError(w, http.StatusConflict, "Account already registered")
			return
		}

		account := &gorm.Account{
			ExternalID:     req.ExternalID,
			Name:           req.Name,
			AccessToken:    req.AccessToken,
			RefreshToken:   req.RefreshToken,
			TokenExpiresAt: req.TokenExpiresAt,
		}
		if err := deps.Repo.Accounts.Create(ctx, account); err != nil {
			logging.Error("Failed to create account", "external_id", req.ExternalID, "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		respondWithSuccess(w, http.StatusCreated, &responses.AccountCreatedResponse{
			AccountID:  account.ID,
			ExternalID: account.ExternalID,
		})
	}
}

// ListAccountsHandler returns every account with its sync status and the
// latest session's progress counters.
func ListAccountsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		accounts, err := deps.Repo.Accounts.List(ctx)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to list accounts")
			return
		}

		summaries := make([]responses.AccountSummary, 0, len(accounts))
		for _, account := range accounts {
			summary := responses.AccountSummary{
				ID:           account.ID,
				ExternalID:   account.ExternalID,
				Name:         account.Name,
				SyncStatus:   string(account.SyncStatus),
				Stalled:      account.Stalled,
				LastError:    account.LastError,
				LastSyncAt:   account.LastSyncAt,
				TotalResults: account.TotalResults,
			}

			session, err := deps.Repo.Sessions.LatestForAccount(ctx, account.ID)
			if err == nil && session != nil {
				progress := &responses.SessionProgress{
					SessionID: session.ID,
					Mode:      string(session.Mode),
					Cancelled: session.Cancelled,
					Cursor:    session.Cursor,
				}
				if agg, err := deps.Repo.Logs.SessionProgress(ctx, session.ID); err == nil && agg != nil {
					progress.Batches = agg.Batches
					progress.OpenBatches = agg.OpenBatches
					progress.ItemsFetched = agg.ItemsFetched
					progress.ResultsAdded = agg.ResultsAdded
					progress.ResultsRemoved = agg.ResultsRemoved
				}
				summary.Session = progress
			}

			summaries = append(summaries, summary)
		}

		respondWithSuccess(w, http.StatusOK, &responses.AccountListResponse{
			Accounts: summaries,
			Count:    len(summaries),
		})
	}
}

// DeleteAccountHandler removes an account and everything hanging off it.
func DeleteAccountHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		ctx := r.Context()

		account, err := deps.Repo.Accounts.GetByID(ctx, accountID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to look up account")
			return
		}
		if account == nil {
			respondWithError(w, http.StatusNotFound, "Account not found")
			return
		}

		if err := deps.Repo.Accounts.Delete(ctx, accountID); err != nil {
			logging.Error("Failed to delete account", "account_id", accountID, "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to delete account")
			return
		}

		logging.Info("Account deleted", "account_id", accountID)
		respondWithSuccess(w, http.StatusOK, &responses.AccountDeletedResponse{AccountID: accountID})
	}
}
