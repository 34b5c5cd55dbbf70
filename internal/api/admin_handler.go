package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gruppetto/internal/logging"
	"gruppetto/internal/models/dtos/requests"
	"gruppetto/internal/models/dtos/responses"
)

const defaultStuckThresholdMinutes = 30

// ResetStuckHandler bulk-resets accounts stuck in in_progress past the
// threshold. Their sessions stay as they are; a later start supersedes
// them.
func ResetStuckHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req requests.ResetStuckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		threshold := req.ThresholdMinutes
		if threshold <= 0 {
			threshold = defaultStuckThresholdMinutes
		}

		count, err := deps.Repo.Accounts.ResetStuck(r.Context(), time.Duration(threshold)*time.Minute)
		if err != nil {
			logging.Error("Failed to reset stuck accounts", "error", err.Error())
			respondWithError(w, http.StatusInternalServerError, "Failed to reset stuck accounts")
			return
		}

		logging.Info("Stuck accounts reset", "count", count, "threshold_minutes", threshold)
		respondWithSuccess(w, http.StatusOK, &responses.ResetStuckResponse{
			ResetCount:       count,
			ThresholdMinutes: threshold,
		})
	}
}
