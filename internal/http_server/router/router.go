package router

import (
	"context"
	"net/http"

	"github.com/Avi18971911/Tally/internal/http_server/handler"
	"github.com/Avi18971911/Tally/internal/pipeline/dispatch"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func CreateRouter(
	ctx context.Context,
	d dispatch.Dispatcher,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()
	events := handler.EventHandler(ctx, d, logger)

	r.Handle("/api/events", events).Methods("POST")
	// path used by older clients
	r.Handle("/process/_send", events).Methods("POST")

	return r
}
