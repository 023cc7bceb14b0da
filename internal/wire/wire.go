package wire

import (
	"net/http"

	"villa-booking/internal/adaptor"
	"villa-booking/internal/data/repository"
	"villa-booking/internal/gateway"
	"villa-booking/internal/usecase"
	"villa-booking/pkg/middleware"
	"villa-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the wired dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring initializes all dependencies
func Wiring(repo *repository.Repository, gw gateway.CheckoutGateway, config *utils.Config, logger *zap.Logger) *App {
	service := usecase.NewService(repo, gw, config, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter configures the chi router
func setupRouter(
	handler *adaptor.Handler,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	// Apply routes
	wireReservation(r, handler.Reservation, handler.Payment, config, logger)
	wireWebhook(r, handler.Webhook)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
