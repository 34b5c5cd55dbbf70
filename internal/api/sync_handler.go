package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gruppetto/internal/constants"
	"gruppetto/internal/logging"
	"gruppetto/internal/models/dtos/requests"
	"gruppetto/internal/models/dtos/responses"
	"gruppetto/internal/services"
)

const defaultLogLimit = 200

// StartSyncHandler kicks off a sync session for an account.
func StartSyncHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")

		var req requests.StartSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		mode := constants.SyncMode(req.Mode)
		if mode == "" {
			mode = constants.SyncModeIncremental
		}
		if mode != constants.SyncModeIncremental && mode != constants.SyncModeFull {
			respondWithError(w, http.StatusBadRequest, "mode must be 'incremental' or 'full'")
			return
		}

		session, err := deps.Services.Sync.StartSession(r.Context(), accountID, mode)
		if err != nil {
			if errors.Is(err, services.ErrSyncInProgress) {
				respondWithError(w, http.StatusConflict, err.Error())
				return
			}
			logging.Error("Failed to start sync", "account_id", accountID, "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to start sync")
			return
		}

		respondWithSuccess(w, http.StatusAccepted, &responses.SyncStartedResponse{
			SessionID: session.ID,
			AccountID: session.AccountID,
			Mode:      string(session.Mode),
		})
	}
}

// StopSyncHandler cancels the account's running session.
func StopSyncHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")

		session, err := deps.Services.Sync.StopForAccount(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, services.ErrNoActiveSession) {
				respondWithError(w, http.StatusNotFound, err.Error())
				return
			}
			logging.Error("Failed to stop sync", "account_id", accountID, "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to stop sync")
			return
		}

		respondWithSuccess(w, http.StatusOK, &responses.SyncStoppedResponse{
			SessionID: session.ID,
			AccountID: session.AccountID,
		})
	}
}

// SessionLogsHandler returns the newest log lines for a session.
func SessionLogsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		ctx := r.Context()

		session, err := deps.Repo.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to look up session")
			return
		}
		if session == nil {
			respondWithError(w, http.StatusNotFound, "Session not found")
			return
		}

		entries, err := deps.Repo.Logs.ListBySession(ctx, sessionID, defaultLogLimit)
		if err != nil {
			logging.Error("Failed to fetch session logs", "session_id", sessionID, "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to fetch session logs")
			return
		}

		lines := make([]responses.SyncLogLine, 0, len(entries))
		for _, entry := range entries {
			lines = append(lines, responses.SyncLogLine{
				ID:        entry.ID,
				Level:     entry.Level,
				Message:   entry.Message,
				Metadata:  entry.Metadata,
				CreatedAt: entry.CreatedAt,
			})
		}

		respondWithSuccess(w, http.StatusOK, &responses.SessionLogsResponse{
			SessionID: sessionID,
			Logs:      lines,
			Count:     len(lines),
		})
	}
}
