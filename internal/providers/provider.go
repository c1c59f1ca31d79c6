package providers

import (
	"context"
	"time"

	"tradedash/internal/model"
)

// Provider fetches one trade table per query. Fetch never fails: any
// problem yields an empty table, and the Outcome says what happened.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query model.Query) (model.Table, Outcome)
}

type Outcome struct {
	Status  int
	Err     error
	Elapsed time.Duration
}

func (o Outcome) OK() bool {
	return o.Err == nil
}
