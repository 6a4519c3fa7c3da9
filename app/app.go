package app

import (
	"github.com/go-chi/oauth"
	"github.com/go-playground/validator/v10"
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/metrics"
)

// App is handed to every controller.
type App struct {
	*database.Store
	*oauth.BearerServer
	config.Config

	Validate *validator.Validate
	Metrics  *metrics.Metrics
}

// New wires the bearer server, the validator and the metrics around store.
func New(cfg config.Config, store *database.Store, m *metrics.Metrics) App {
	if m == nil {
		m = metrics.New()
	}
	return App{
		Store:        store,
		BearerServer: httpx.NewBearerServer(store, cfg.TokenSecret, cfg.TokenTTL),
		Config:       cfg,
		Validate:     httpx.NewValidator(),
		Metrics:      m,
	}
}
