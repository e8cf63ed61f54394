package handlers

import (
	"errors"
	"net/http"

	"github.com/findosh/quantdesk/internal/services/importer"
	"github.com/rs/zerolog"
)

// APIImportPositions reads a brokerage CSV export from the request body and
// returns its positions, ready to submit for portfolio metrics
func (h *Handler) APIImportPositions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	result, err := h.importer.ParseCSV(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.jsonError(w, "CSV file too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, importer.ErrEmptyFile),
			errors.Is(err, importer.ErrUnknownFormat),
			errors.Is(err, importer.ErrNoData):
			h.jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			h.jsonError(w, "Invalid CSV: "+err.Error(), http.StatusBadRequest)
		}
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("source", result.Source).
		Int("positions", len(result.Positions)).
		Int("skipped", result.Skipped).
		Msg("imported positions")

	h.jsonResponse(w, r, http.StatusOK, result)
}
