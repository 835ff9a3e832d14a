package debounce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/fuzz/internal/search"
)

const testInterval = 50 * time.Millisecond

// recorder is a SearchFunc that records every query it is called with.
type recorder struct {
	mu      sync.Mutex
	queries []string
	run     func(ctx context.Context, q string) ([]search.Record, error)
}

func (r *recorder) search(ctx context.Context, q string) ([]search.Record, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	if r.run != nil {
		return r.run(ctx, q)
	}
	return []search.Record{{Path: "f.go", Line: 1, Text: q}}, nil
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func receive(t *testing.T, d *Debouncer) Result {
	t.Helper()
	select {
	case res, ok := <-d.Results():
		require.True(t, ok, "results channel closed")
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func expectNothing(t *testing.T, d *Debouncer, wait time.Duration) {
	t.Helper()
	select {
	case res := <-d.Results():
		t.Fatalf("unexpected result %+v", res)
	case <-time.After(wait):
	}
}

func TestBurstStartsOneRun(t *testing.T) {
	rec := &recorder{}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	for _, q := range []string{"f", "fo", "foo", "foob"} {
		d.QueryChanged(q)
		time.Sleep(testInterval / 5)
	}

	res := receive(t, d)
	assert.Equal(t, "foob", res.Query)
	assert.Equal(t, uint64(1), res.Seq)
	require.NoError(t, res.Err)
	assert.Equal(t, []search.Record{{Path: "f.go", Line: 1, Text: "foob"}}, res.Records)

	expectNothing(t, d, 3*testInterval)
	assert.Equal(t, []string{"foob"}, rec.calls())
}

func TestSpacedChangesEachRun(t *testing.T) {
	rec := &recorder{}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	d.QueryChanged("one")
	assert.Equal(t, "one", receive(t, d).Query)

	d.QueryChanged("two")
	res := receive(t, d)
	assert.Equal(t, "two", res.Query)
	assert.Equal(t, uint64(2), res.Seq)

	assert.Equal(t, []string{"one", "two"}, rec.calls())
}

func TestSupersededRunIsCanceled(t *testing.T) {
	started := make(chan struct{})
	var canceled sync.WaitGroup
	canceled.Add(1)

	rec := &recorder{run: func(ctx context.Context, q string) ([]search.Record, error) {
		if q == "slow" {
			close(started)
			<-ctx.Done()
			canceled.Done()
			return nil, ctx.Err()
		}
		return []search.Record{{Path: "f.go", Line: 1, Text: q}}, nil
	}}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	d.QueryChanged("slow")
	<-started
	d.QueryChanged("fast")

	res := receive(t, d)
	assert.Equal(t, "fast", res.Query)
	canceled.Wait()
	expectNothing(t, d, 2*testInterval)
}

func TestStaleResultDiscarded(t *testing.T) {
	// The old run ignores cancellation and finishes after the new one.
	release := make(chan struct{})
	rec := &recorder{run: func(ctx context.Context, q string) ([]search.Record, error) {
		if q == "old" {
			<-release
			return []search.Record{{Path: "old.go", Line: 1}}, nil
		}
		return []search.Record{{Path: "new.go", Line: 1}}, nil
	}}
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()
	defer unblock()

	d.Now("old")
	d.Now("new")

	res := receive(t, d)
	assert.Equal(t, "new", res.Query)

	unblock()
	expectNothing(t, d, 2*testInterval)
}

func TestErrorsAreDelivered(t *testing.T) {
	boom := search.ToolMissing("rg", errors.New("not found"))
	rec := &recorder{run: func(context.Context, string) ([]search.Record, error) {
		return nil, boom
	}}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	d.QueryChanged("x")
	res := receive(t, d)
	assert.ErrorIs(t, res.Err, search.ErrToolMissing)
	assert.Nil(t, res.Records)
}

func TestCanceledErrorPublishesNothing(t *testing.T) {
	rec := &recorder{run: func(context.Context, string) ([]search.Record, error) {
		return nil, search.ErrCanceled
	}}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	d.Now("x")
	expectNothing(t, d, 2*testInterval)
}

func TestLatestWinsMailbox(t *testing.T) {
	rec := &recorder{}
	d := New(rec.search, Options{Interval: testInterval})
	defer d.Close()

	d.Now("first")
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	d.Now("second")
	require.Eventually(t, func() bool { return len(rec.calls()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	// Nobody read "first"; it was replaced.
	assert.Equal(t, "second", receive(t, d).Query)
}

func TestClose(t *testing.T) {
	rec := &recorder{}
	d := New(rec.search, Options{Interval: testInterval})

	d.QueryChanged("pending")
	d.Close()
	d.Close()
	d.QueryChanged("after close")
	d.Now("after close")

	_, ok := <-d.Results()
	assert.False(t, ok, "results channel should be closed")
	time.Sleep(2 * testInterval)
	assert.Empty(t, rec.calls())
}

func TestCloseCancelsLiveRun(t *testing.T) {
	started := make(chan struct{})
	rec := &recorder{run: func(ctx context.Context, _ string) ([]search.Record, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	d := New(rec.search, Options{})
	d.Now("x")
	<-started

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestDefaultInterval(t *testing.T) {
	d := New(func(context.Context, string) ([]search.Record, error) { return nil, nil }, Options{})
	defer d.Close()
	assert.Equal(t, DefaultInterval, d.interval)
}
