package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schedparser/internal/model"
	"schedparser/internal/storage/memory"
)

// fakeFetcher отдает страницы из памяти и считает одновременные загрузки
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	panics   map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:  make(map[string]string),
		errs:   make(map[string]error),
		panics: make(map[string]bool),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics[url] {
		panic("unexpected markup")
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%w: no page for %s", model.ErrFetchFailure, url)
	}
	return page, nil
}

func fixturePage(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../parser/testdata/schedule_1123.html")
	require.NoError(t, err)
	return string(data)
}

func groupURL(id int) string {
	return fmt.Sprintf("https://schedule.example.edu/group/%d.htm", id)
}

func addGroup(store *memory.Store, fetcher *fakeFetcher, id int, page string) {
	store.AddGroup(model.GroupInfo{GroupID: id, Name: "1123", URL: groupURL(id), IsActive: true})
	if page != "" {
		fetcher.pages[groupURL(id)] = page
	}
}

func newOrchestrator(store *memory.Store, fetcher PageFetcher, limit int) *Orchestrator {
	return New(store, fetcher, Options{
		MaxConcurrent: limit,
		Location:      time.UTC,
		Now:           func() time.Time { return time.Date(2024, time.September, 4, 12, 0, 0, 0, time.UTC) },
	}, zap.NewNop())
}

func TestRun_FixtureGroup(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 106, fixturePage(t))

	results := newOrchestrator(store, fetcher, 2).Run(context.Background(), []int{106})

	require.Len(t, results, 1)
	res := results[0]
	require.True(t, res.IsSuccessful(), res.Error)
	assert.Equal(t, "1123", res.GroupName)
	assert.Equal(t, 34, res.LessonsAdded)
	assert.Zero(t, res.LessonsUpdated)
	assert.Zero(t, res.LessonsDeleted)
	assert.Len(t, store.Lessons(106, model.WeekEven), 16)
	assert.Len(t, store.Lessons(106, model.WeekOdd), 18)
	assert.Zero(t, store.OpenSessions())
}

func TestRun_SecondRunHasNoChanges(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 106, fixturePage(t))
	o := newOrchestrator(store, fetcher, 1)

	first := o.Run(context.Background(), []int{106})
	require.True(t, first[0].IsSuccessful())
	changes := len(store.Changes())

	second := o.Run(context.Background(), []int{106})
	require.True(t, second[0].IsSuccessful())
	assert.Zero(t, second[0].TotalChanges())
	assert.Len(t, store.Changes(), changes)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	fetcher.delay = 20 * time.Millisecond
	page := fixturePage(t)

	ids := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for _, id := range ids {
		addGroup(store, fetcher, id, page)
	}

	o := newOrchestrator(store, fetcher, 3)
	results := o.Run(context.Background(), ids)

	require.Len(t, results, len(ids))
	for i, res := range results {
		assert.Equal(t, ids[i], res.GroupID)
		assert.True(t, res.IsSuccessful(), res.Error)
	}
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(3))
	assert.Equal(t, int32(len(ids)), fetcher.calls.Load())

	m := o.Metrics()
	assert.LessOrEqual(t, m.PeakInFlight, 3)
	assert.Zero(t, m.InFlight)
	assert.Equal(t, int64(len(ids)), m.Processed)
	assert.Zero(t, m.Failed)
	assert.Equal(t, int64(1), m.Runs)
	assert.Equal(t, len(ids), m.LastRun.Succeeded)
}

func TestRun_GroupNotFound(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 106, fixturePage(t))

	results := newOrchestrator(store, fetcher, 2).Run(context.Background(), []int{999, 106})

	require.Len(t, results, 2)
	assert.Equal(t, model.StatusFailed, results[0].Status)
	assert.Equal(t, 999, results[0].GroupID)
	assert.Equal(t, model.CodeGroupNotFound, results[0].ErrorCode)
	assert.True(t, results[1].IsSuccessful())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestRun_InactiveGroupIsNotFound(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	store.AddGroup(model.GroupInfo{GroupID: 7, Name: "1123", URL: groupURL(7), IsActive: false})
	fetcher.pages[groupURL(7)] = fixturePage(t)

	res := newOrchestrator(store, fetcher, 1).Run(context.Background(), []int{7})[0]

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, model.CodeGroupNotFound, res.ErrorCode)
	assert.Zero(t, fetcher.calls.Load())
	assert.Empty(t, store.Lessons(7, model.WeekEven))
	assert.Empty(t, store.Changes())
}

func TestRun_FailuresDoNotAffectSiblings(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	page := fixturePage(t)
	addGroup(store, fetcher, 1, page)
	addGroup(store, fetcher, 2, "")
	addGroup(store, fetcher, 3, page)
	addGroup(store, fetcher, 4, "<html><body>Страница не найдена</body></html>")
	fetcher.errs[groupURL(2)] = fmt.Errorf("%w: connection refused", model.ErrFetchFailure)
	fetcher.panics[groupURL(3)] = true

	results := newOrchestrator(store, fetcher, 4).Run(context.Background(), []int{1, 2, 3, 4})

	require.Len(t, results, 4)
	assert.True(t, results[0].IsSuccessful())
	assert.Equal(t, model.CodeFetchFailure, results[1].ErrorCode)
	assert.Equal(t, model.CodeInternal, results[2].ErrorCode)
	assert.Contains(t, results[2].Error, "panic")
	assert.Equal(t, model.CodeNoScheduleTable, results[3].ErrorCode)

	assert.Len(t, store.Lessons(1, model.WeekEven), 16)
	assert.Empty(t, store.Lessons(4, model.WeekEven))
	assert.Zero(t, store.OpenSessions())

	summary := Summarize(results)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 3, summary.Failed)
}

func TestRun_EmptyPageKeepsStoredLessons(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 7, fixturePage(t))
	o := newOrchestrator(store, fetcher, 1)

	require.True(t, o.Run(context.Background(), []int{7})[0].IsSuccessful())

	fetcher.pages[groupURL(7)] = "<html><p>Технические работы</p></html>"
	res := o.Run(context.Background(), []int{7})[0]

	assert.Equal(t, model.CodeNoScheduleTable, res.ErrorCode)
	assert.Len(t, store.Lessons(7, model.WeekEven), 16)
	assert.Len(t, store.Lessons(7, model.WeekOdd), 18)
}

func TestRun_StorageFailure(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 5, fixturePage(t))
	store.FailOn(memory.OpInsert, errors.New("disk full"))

	res := newOrchestrator(store, fetcher, 1).Run(context.Background(), []int{5})[0]

	assert.Equal(t, model.CodeStorageFailure, res.ErrorCode)
	assert.Empty(t, store.Lessons(5, model.WeekEven))
	assert.Empty(t, store.Changes())
	assert.Zero(t, store.OpenSessions())
}

func TestRun_CancelledContext(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 1, fixturePage(t))
	addGroup(store, fetcher, 2, fixturePage(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newOrchestrator(store, fetcher, 1).Run(ctx, []int{1, 2})
	for _, res := range results {
		assert.Equal(t, model.CodeCancelled, res.ErrorCode)
	}
	assert.Empty(t, store.Lessons(1, model.WeekEven))
}

func TestRunActive(t *testing.T) {
	store, fetcher := memory.New(), newFakeFetcher()
	addGroup(store, fetcher, 2, fixturePage(t))
	addGroup(store, fetcher, 1, fixturePage(t))
	store.AddGroup(model.GroupInfo{GroupID: 3, Name: "1125", URL: groupURL(3), IsActive: false})

	results, err := newOrchestrator(store, fetcher, 2).RunActive(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].GroupID)
	assert.Equal(t, 2, results[1].GroupID)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRunActive_NoGroups(t *testing.T) {
	results, err := newOrchestrator(memory.New(), newFakeFetcher(), 1).RunActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
