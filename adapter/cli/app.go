package cli

import (
	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/ml/predictor"
	"github.com/studyloop/studyloop/internal/ml/training"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/pkg/config"
	"github.com/studyloop/studyloop/pkg/observability"
)

// App holds the CLI application dependencies.
type App struct {
	Config *config.Config

	Repo      domain.StudyRepository
	Scheduler *services.Scheduler
	Engine    *services.PriorityEngine
	Predictor *predictor.Service
	Training  *training.Pipeline
	Health    *observability.HealthRegistry
	Metrics   observability.Metrics

	// CurrentUserID identifies the user commands act on behalf of.
	CurrentUserID uuid.UUID
}

// SetCurrentUserID sets the user commands act on.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
