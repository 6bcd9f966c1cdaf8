package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/Avi18971911/Tally/internal/ingest/decoder"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 20

// EventHandler accepts one envelope in the collector's JSON encoding.
// @Summary Submit a telemetry envelope.
// @Accept json
// @Success 204 "Envelope accepted"
// @Failure 500 {object} ErrorMessage "Envelope could not be decoded"
// @Router /api/events [post]
func EventHandler(
	ctx context.Context,
	d dispatch.Dispatcher,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info(
			"Received Event Handler",
			zap.String("URL Path", r.URL.Path),
			zap.String("Method", r.Method),
		)
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logger.Error("Error encountered when closing request body", zap.Error(err))
			}
		}(r.Body)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Error("Error encountered when reading request body", zap.Error(err))
			HttpError(w, err.Error(), http.StatusInternalServerError, logger)
			return
		}

		batch, err := decoder.DecodeJSONEnvelope(body)
		if err != nil {
			logger.Error("Error encountered when decoding envelope", zap.Error(err))
			HttpError(w, err.Error(), http.StatusInternalServerError, logger)
			return
		}

		if err := d.Dispatch(ctx, batch); err != nil {
			logger.Error("Error encountered when dispatching envelope", zap.Error(err))
			HttpError(w, err.Error(), http.StatusInternalServerError, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
