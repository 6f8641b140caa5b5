package router

import (
	"context"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.ResponseEventRow
	err      error
}

func (f *fakeWriter) InsertResponseEvent(_ context.Context, row types.ResponseEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
