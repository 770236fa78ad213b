package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/lossledger/internal/extract"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Workers(t *testing.T) {
	assert.Equal(t, 5, NewPool[int](context.Background(), 5).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), 0).workers)
	assert.Equal(t, 1, NewPool[int](context.Background(), -1).workers)
}

func TestPool_PreservesSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 4)
	pool.Start()

	for i := range 20 {
		// later jobs finish first
		delay := time.Duration(20-i) * time.Millisecond
		pool.Submit(JobFunc[int](func(ctx context.Context) int {
			time.Sleep(delay)
			return i
		}))
	}

	results, err := pool.Wait()
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r)
	}
}

func TestPool_Concurrency(t *testing.T) {
	var running, peak atomic.Int32
	pool := NewPool[struct{}](context.Background(), 3)
	pool.Start()

	for range 12 {
		pool.Submit(JobFunc[struct{}](func(ctx context.Context) struct{} {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return struct{}{}
		}))
	}

	_, err := pool.Wait()
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[int](ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(JobFunc[int](func(ctx context.Context) int {
		close(started)
		<-ctx.Done()
		return 1
	}))
	<-started
	cancel()
	pool.Submit(JobFunc[int](func(ctx context.Context) int { return 2 }))

	results, err := pool.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 2)
}

func TestMap_ManyMoreJobsThanBuffers(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}

	done := make(chan []int, 1)
	go func() {
		out, err := Map(context.Background(), 1, items, func(_ context.Context, n int) int {
			return n * 2
		})
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		require.Len(t, out, len(items))
		for i, v := range out {
			assert.Equal(t, i*2, v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Map with 1 worker and 200 items did not finish")
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()
	results, err := pool.Wait()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMap(t *testing.T) {
	out, err := Map(context.Background(), 3, []string{"a", "bb", "ccc"}, func(_ context.Context, s string) int {
		return len(s)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestLimiter_Spacing(t *testing.T) {
	limiter := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 20, BurstSize: 1})
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		require.NoError(t, limiter.Wait(ctx, "https://www.oryxspioenkop.com/page"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	// other hosts have their own budget
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://i.postimg.cc/x"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(model.RateLimitConfig{})
	ctx := context.Background()

	start := time.Now()
	for range 50 {
		require.NoError(t, limiter.Wait(ctx, "https://x.test/"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1})

	start := time.Now()
	require.NoError(t, limiter.WaitWithDelay(context.Background(), "https://x.test/", 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.WaitWithDelay(ctx, "https://x.test/", time.Second))
}

func TestLimiter_BadURL(t *testing.T) {
	limiter := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 1})
	assert.Error(t, limiter.Wait(context.Background(), "no-host"))
}

type stubSource struct {
	failURL string
}

func (s *stubSource) ParsePage(_ context.Context, page model.PageConfig) ([]model.RawLossRecord, []extract.Skip, error) {
	if page.URL == s.failURL {
		return nil, nil, errors.New("fetch failed")
	}
	return []model.RawLossRecord{{Country: page.Country, EvidenceURL: page.URL, NumericID: 1}},
		[]extract.Skip{{Reason: "evidence: missing link target", Path: "/html[1]"}}, nil
}

func TestBatchProcessor_ProcessPages(t *testing.T) {
	pages := []model.PageConfig{
		{URL: "https://x.test/russia", Country: "Russia", SectionIndex: 7},
		{URL: "https://x.test/broken"},
		{URL: "https://x.test/ukraine", Country: "Ukraine", SectionIndex: 1},
	}
	processor := NewBatchProcessor(&stubSource{failURL: "https://x.test/broken"}, 2, nil)

	results, err := processor.ProcessPages(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, pages[0], results[0].Page)
	assert.NoError(t, results[0].Error)
	assert.Len(t, results[0].Records, 1)
	assert.Len(t, results[0].Skips, 1)

	assert.Error(t, results[1].Error)
	assert.Equal(t, "Ukraine", results[2].Records[0].Country)
}

func TestBatchProcessor_ManyPages(t *testing.T) {
	var pages []model.PageConfig
	for i := range 60 {
		pages = append(pages, model.PageConfig{URL: fmt.Sprintf("https://x.test/%d", i), Country: "Russia"})
	}

	done := make(chan []*PageResult, 1)
	go func() {
		results, err := NewBatchProcessor(&stubSource{}, 1, nil).ProcessPages(context.Background(), pages)
		assert.NoError(t, err)
		done <- results
	}()

	select {
	case results := <-done:
		require.Len(t, results, len(pages))
		for i, r := range results {
			assert.Equal(t, pages[i].URL, r.Records[0].EvidenceURL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("60 pages on 1 worker did not finish")
	}
}

func TestBatchProcessor_NoPages(t *testing.T) {
	results, err := NewBatchProcessor(&stubSource{}, 2, nil).ProcessPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReadPagesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.txt")
	require.NoError(t, os.WriteFile(path, []byte(`# report pages
https://x.test/russia Russia 7

https://x.test/naval
https://x.test/russia Russia 7
`), 0o644))

	pages, err := ReadPagesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []model.PageConfig{
		{URL: "https://x.test/russia", Country: "Russia", SectionIndex: 7},
		{URL: "https://x.test/naval"},
	}, pages)
}

func TestReadPagesFromFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"two-fields.txt": "https://x.test/russia Russia\n",
		"bad-index.txt":  "https://x.test/russia Russia seven\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := ReadPagesFromFile(path)
		assert.Error(t, err, name)
	}

	_, err := ReadPagesFromFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
