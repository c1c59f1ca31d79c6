package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradedash/internal/chart"
	"tradedash/internal/config"
	"tradedash/internal/model"
	"tradedash/internal/providers"
	"tradedash/internal/store"
)

// Inputs are the values of the dashboard's controls.
type Inputs struct {
	Reporter       string `json:"reporter"`
	Partner        string `json:"partner"`
	Year           string `json:"year"`
	Classification string `json:"classification,omitempty"`
}

func (in Inputs) Query() model.Query {
	return model.Query{
		Reporter:       in.Reporter,
		Partner:        in.Partner,
		Year:           in.Year,
		Classification: model.Classification(in.Classification),
	}
}

// Figures is the result of one refresh: the three charts plus the inputs
// that produced them.
type Figures struct {
	ID     string        `json:"id"`
	Inputs Inputs        `json:"inputs"`
	Rows   int           `json:"rows"`
	Charts chart.Figures `json:"charts"`
}

// App is the explicit application context shared by every binding and
// request handler.
type App struct {
	provider providers.Provider
	journal  store.Journal
	options  config.Options
	log      *zap.Logger
	now      func() time.Time
}

func NewApp(provider providers.Provider, journal store.Journal, options config.Options, log *zap.Logger) *App {
	if journal == nil {
		journal = &store.NopStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		provider: provider,
		journal:  journal,
		options:  options,
		log:      log.Named("dashboard"),
		now:      time.Now,
	}
}

func (a *App) Options() config.Options {
	return a.options
}

func (a *App) Journal() store.Journal {
	return a.journal
}

// DefaultInputs are the control values shown before the user touches
// anything.
func (a *App) DefaultInputs() Inputs {
	classification := ""
	if len(a.options.Classifications) > 0 {
		classification = a.options.Classifications[0]
	}
	return Inputs{
		Reporter:       a.options.DefaultReporter,
		Partner:        a.options.DefaultPartner,
		Year:           a.options.DefaultYear,
		Classification: classification,
	}
}

// Refresh fetches the table for the inputs and projects it. It never fails;
// unavailable data yields empty charts.
func (a *App) Refresh(ctx context.Context, in Inputs) Figures {
	id := uuid.NewString()
	table, outcome := a.provider.Fetch(ctx, in.Query())

	a.record(ctx, id, table, outcome)

	return Figures{
		ID:     id,
		Inputs: in,
		Rows:   table.Len(),
		Charts: chart.Project(table),
	}
}

func (a *App) record(ctx context.Context, id string, table model.Table, outcome providers.Outcome) {
	event := store.FetchEvent{
		ID:             id,
		Provider:       a.provider.Name(),
		Reporter:       table.Query.Reporter,
		Partner:        table.Query.Partner,
		Year:           table.Query.Year,
		Classification: string(table.Query.Classification),
		Status:         outcome.Status,
		Rows:           table.Len(),
		Elapsed:        outcome.Elapsed,
		FetchedAt:      a.now(),
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}

	// A superseded refresh is cancelled, but its outcome is still journaled.
	if err := a.journal.RecordFetch(context.WithoutCancel(ctx), event); err != nil {
		a.log.Warn("failed to journal fetch", zap.String("id", id), zap.Error(err))
	}
}
