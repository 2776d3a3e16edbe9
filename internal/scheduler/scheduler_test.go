package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdd(t *testing.T) {
	s := New(context.Background(), zap.NewNop())

	require.NoError(t, s.Add(Job{Name: "crawl", Spec: "0 3 * * *", Run: func(context.Context) error { return nil }}))
	require.NoError(t, s.Add(Job{Name: "disabled", Spec: ""}))
	assert.Len(t, s.cron.Entries(), 1)

	err := s.Add(Job{Name: "broken", Spec: "every day"})
	assert.ErrorContains(t, err, "invalid schedule for broken")
}

func TestWrap_SkipsWhileBatchRuns(t *testing.T) {
	s := New(context.Background(), zap.NewNop())

	var inner int
	convert := s.wrap(Job{Name: "convert", Run: func(context.Context) error {
		inner++
		return nil
	}})

	crawlRuns := 0
	crawl := s.wrap(Job{Name: "crawl", Run: func(context.Context) error {
		crawlRuns++
		// A tick firing mid-run is dropped.
		convert()
		return errors.New("board failures")
	}})

	crawl()
	assert.Equal(t, 1, crawlRuns)
	assert.Equal(t, 0, inner)

	// The lock is released after a failed run.
	convert()
	assert.Equal(t, 1, inner)
}

func TestWrap_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	s := New(ctx, zap.NewNop())

	var got any
	s.wrap(Job{Name: "job", Run: func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	}})()
	assert.Equal(t, "v", got)
}
