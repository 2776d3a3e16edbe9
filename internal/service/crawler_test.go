package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePortal serves canned pages by link.
type fakePortal struct {
	pages map[string][]byte
	fails map[string]error
	calls []string
}

func (f *fakePortal) FetchPage(_ context.Context, ref string) ([]byte, error) {
	f.calls = append(f.calls, ref)
	if err := f.fails[ref]; err != nil {
		return nil, err
	}
	page, ok := f.pages[ref]
	if !ok {
		return nil, fmt.Errorf("unexpected status code: 404")
	}
	return page, nil
}

// memoryRegulations applies the same upsert rules as the SQL store.
type memoryRegulations struct {
	rows map[string]model.RegulationPost
	err  error
}

func newMemoryRegulations() *memoryRegulations {
	return &memoryRegulations{rows: make(map[string]model.RegulationPost)}
}

func (m *memoryRegulations) Upsert(_ context.Context, post *model.RegulationPost, _ time.Time) (model.UpsertResult, error) {
	if m.err != nil {
		return model.Unchanged, m.err
	}
	key := post.Type + "|" + post.Title
	existing, ok := m.rows[key]
	switch {
	case !ok:
		m.rows[key] = *post
		return model.Inserted, nil
	case existing.CreateDate.Before(post.CreateDate):
		m.rows[key] = *post
		return model.Updated, nil
	default:
		return model.Unchanged, nil
	}
}

func listing(first string) []byte {
	return []byte(fmt.Sprintf(`<table class="basic-list-table"><tbody><tr><td><a href="%s">x</a></td></tr></tbody></table>`, first))
}

func boardPost(category, title, date, prev string) []byte {
	return postPage(fmt.Sprintf("[%s]\n%s\n총무팀\n%s", category, title, date), "", "/dl?file_name_origin=a.hwp", prev)
}

func newTestCrawler(portal *fakePortal, store RegulationUpserter, boards []string, maxPosts int) (*Crawler, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c := NewCrawler(portal, NewPostParser(time.UTC), store, boards, maxPosts, metrics, zap.NewNop())
	return c, metrics
}

func threePostBoard() *fakePortal {
	return &fakePortal{pages: map[string][]byte{
		"/board/a": listing("/post/3"),
		"/post/3":  boardPost("규정", "여비 규정", "2024-03-04", "/post/2"),
		"/post/2":  boardPost("내규", "복무 내규", "2024-02-01", "/post/1"),
		"/post/1":  boardPost("규정", "여비 규정", "2023-01-02", ""),
	}}
}

func TestCrawl_WalksBackwardAndUpserts(t *testing.T) {
	portal := threePostBoard()
	store := newMemoryRegulations()
	c, metrics := newTestCrawler(portal, store, []string{"/board/a"}, 0)

	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Boards)
	assert.Equal(t, 3, stats.Posts)
	assert.Equal(t, 2, stats.Inserted)
	// The older 여비 규정 sighting never overwrites the newer one.
	assert.Equal(t, 1, stats.Unchanged)
	assert.Empty(t, stats.Failures)
	assert.Equal(t, []string{"/board/a", "/post/3", "/post/2", "/post/1"}, portal.calls)

	row := store.rows[model.TypeRegulation+"|여비 규정"]
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), row.CreateDate)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CrawledPosts.WithLabelValues("inserted")))
}

func TestCrawl_SecondRunIsIdempotent(t *testing.T) {
	store := newMemoryRegulations()

	c, _ := newTestCrawler(threePostBoard(), store, []string{"/board/a"}, 0)
	_, err := c.Crawl(context.Background())
	require.NoError(t, err)

	c, _ = newTestCrawler(threePostBoard(), store, []string{"/board/a"}, 0)
	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 3, stats.Unchanged)
	assert.Len(t, store.rows, 2)
}

func TestCrawl_NewerPostingUpdates(t *testing.T) {
	store := newMemoryRegulations()
	c, _ := newTestCrawler(threePostBoard(), store, []string{"/board/a"}, 0)
	_, err := c.Crawl(context.Background())
	require.NoError(t, err)

	portal := threePostBoard()
	portal.pages["/board/a"] = listing("/post/4")
	portal.pages["/post/4"] = boardPost("규정", "여비 규정", "2024-06-01", "/post/3")

	c, _ = newTestCrawler(portal, store, []string{"/board/a"}, 0)
	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
}

func TestCrawl_BoardFailuresAreIsolated(t *testing.T) {
	portal := threePostBoard()
	portal.pages["/board/b"] = listing("/post/b2")
	portal.pages["/post/b2"] = boardPost("예규", "출장 예규", "2024-01-05", "/post/b1")
	portal.pages["/post/b1"] = []byte(`<html><body>broken</body></html>`)
	portal.fails = map[string]error{"/board/c": errors.New("connection refused")}

	store := newMemoryRegulations()
	c, metrics := newTestCrawler(portal, store, []string{"/board/b", "/board/c", "/board/a"}, 0)

	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Boards)
	require.Len(t, stats.Failures, 2)
	assert.Equal(t, "/board/b", stats.Failures[0].Board)
	assert.Equal(t, "/post/b1", stats.Failures[0].Link)
	assert.ErrorIs(t, stats.Failures[0].Err, ErrStructure)
	assert.Equal(t, "/board/c", stats.Failures[1].Board)

	// Board b kept its first post, board a ran to completion.
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BoardFailures))
}

func TestCrawl_StoreErrorIsFatal(t *testing.T) {
	store := newMemoryRegulations()
	store.err = errors.New("database is down")
	c, _ := newTestCrawler(threePostBoard(), store, []string{"/board/a", "/board/b"}, 0)

	stats, err := c.Crawl(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
	assert.Equal(t, 1, stats.Boards)
}

func TestCrawl_StopsOnLinkCycle(t *testing.T) {
	portal := &fakePortal{pages: map[string][]byte{
		"/board/a": listing("/post/2"),
		"/post/2":  boardPost("규정", "가 규정", "2024-03-04", "/post/1"),
		"/post/1":  boardPost("규정", "나 규정", "2024-03-01", "/post/2"),
	}}
	c, _ := newTestCrawler(portal, newMemoryRegulations(), []string{"/board/a"}, 0)

	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Posts)
	assert.Empty(t, stats.Failures)
}

func TestCrawl_RespectsPostCap(t *testing.T) {
	c, _ := newTestCrawler(threePostBoard(), newMemoryRegulations(), []string{"/board/a"}, 2)

	stats, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Posts)
}

func TestCrawl_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestCrawler(threePostBoard(), newMemoryRegulations(), []string{"/board/a"}, 0)
	_, err := c.Crawl(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
