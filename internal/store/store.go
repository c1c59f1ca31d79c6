package store

import (
	"context"
	"time"
)

// Journal records fetch outcomes. It is never read back to answer a query.
type Journal interface {
	RecordFetch(ctx context.Context, event FetchEvent) error
	ListFetches(ctx context.Context, limit int) ([]FetchEvent, error)
	Close() error
}

type FetchEvent struct {
	ID             string        `json:"id"`
	Provider       string        `json:"provider"`
	Reporter       string        `json:"reporter"`
	Partner        string        `json:"partner"`
	Year           string        `json:"year"`
	Classification string        `json:"classification"`
	Status         int           `json:"status"`
	Rows           int           `json:"rows"`
	Error          string        `json:"error,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
	FetchedAt      time.Time     `json:"fetchedAt"`
}

type NopStore struct{}

func (s *NopStore) RecordFetch(ctx context.Context, event FetchEvent) error {
	_ = ctx
	_ = event
	return nil
}

func (s *NopStore) ListFetches(ctx context.Context, limit int) ([]FetchEvent, error) {
	_ = ctx
	_ = limit
	return []FetchEvent{}, nil
}

func (s *NopStore) Close() error {
	return nil
}
