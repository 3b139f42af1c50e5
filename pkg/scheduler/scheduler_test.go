package scheduler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nforsman/booru-client/internal/testutil"
	"github.com/nforsman/booru-client/pkg/ratelimit"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestScheduler(cfg Config) *Scheduler {
	return New(cfg, testLogger())
}

func TestSubmitAwait_Roundtrip(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetResponse("/posts.json", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"posts": []}`,
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, nil)

	res, err := s.Await(context.Background(), jobID, 5*time.Second)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !res.OK() {
		t.Error("OK() = false, want true")
	}
	if string(res.Body) != `{"posts": []}` {
		t.Errorf("Body = %q", res.Body)
	}
}

func TestAwait_ConsumesResultExactlyOnce(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, nil)

	if _, err := s.Await(context.Background(), jobID, 5*time.Second); err != nil {
		t.Fatalf("first Await() error = %v", err)
	}

	_, err := s.Await(context.Background(), jobID, time.Second)
	if !errors.Is(err, ErrResultNotFound) {
		t.Errorf("second Await() error = %v, want ErrResultNotFound", err)
	}
}

func TestAwait_UnknownJob(t *testing.T) {
	s := newTestScheduler(DefaultConfig())

	_, err := s.Await(context.Background(), "no-such-job", time.Second)
	if !errors.Is(err, ErrResultNotFound) {
		t.Errorf("Await() error = %v, want ErrResultNotFound", err)
	}
}

func TestAwait_Timeout(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetResponse("/slow.json", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"posts": []}`,
		Delay:      500 * time.Millisecond,
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/slow.json", http.MethodGet, nil, nil)

	_, err := s.Await(context.Background(), jobID, 50*time.Millisecond)
	if !errors.Is(err, ErrAwaitTimeout) {
		t.Errorf("Await() error = %v, want ErrAwaitTimeout", err)
	}
}

func TestAwait_ContextCancel(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetResponse("/slow.json", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Delay:      500 * time.Millisecond,
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/slow.json", http.MethodGet, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Await(ctx, jobID, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	var inFlight, peak int64
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetHandler("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"posts": []}`))
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 2
	cfg.NewJobThreshold = 1
	s := newTestScheduler(cfg)

	var jobIDs []string
	for i := 0; i < 6; i++ {
		jobIDs = append(jobIDs, s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, nil))
	}

	var wg sync.WaitGroup
	for _, id := range jobIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.Await(context.Background(), id, 10*time.Second); err != nil {
				t.Errorf("Await(%s) error = %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Errorf("peak concurrent requests = %d, want <= 2", got)
	}
	if mock.GetRequestCount() != 6 {
		t.Errorf("request count = %d, want 6", mock.GetRequestCount())
	}
	if s.Pending() {
		t.Error("Pending() = true after all jobs completed")
	}
}

func TestIdleIntervalLeavesPacerState(t *testing.T) {
	pacer := ratelimit.NewPacer(ratelimit.DefaultConfig(), testLogger())

	cfg := DefaultConfig()
	cfg.Pacer = pacer
	s := newTestScheduler(cfg)

	for i := 0; i < 10; i++ {
		s.idleInterval()
	}

	state := pacer.Snapshot()
	if state.ConsecutiveBurstRequests != 0 {
		t.Errorf("ConsecutiveBurstRequests = %d after idle ticks, want 0", state.ConsecutiveBurstRequests)
	}
	if state.ConsecutiveBurstPeriods != 0 {
		t.Errorf("ConsecutiveBurstPeriods = %d after idle ticks, want 0", state.ConsecutiveBurstPeriods)
	}
}

func TestSubmit_FastCompletionStillSignalsAwait(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetResponse("/posts.json", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"posts": []}`,
	})

	cfg := DefaultConfig()
	cfg.MaxConcurrent = 8
	cfg.NewJobThreshold = 1
	s := newTestScheduler(cfg)

	// Workers against an instant endpoint finish almost immediately after
	// dispatch. The waiter channel must exist before the controller can hand
	// the job to a worker, or Await never sees the completion.
	for i := 0; i < 50; i++ {
		jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, nil)
		if _, err := s.Await(context.Background(), jobID, 2*time.Second); err != nil {
			t.Fatalf("Await() #%d error = %v", i, err)
		}
	}
}

func TestExecute_GetPayloadBecomesQuery(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()

	var gotQuery string
	mock.SetHandler("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("tags")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"posts": []}`))
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, map[string][]string{
		"tags": {"blue_sky cloud"},
	})
	if _, err := s.Await(context.Background(), jobID, 5*time.Second); err != nil {
		t.Fatalf("Await() error = %v", err)
	}

	if gotQuery != "blue_sky cloud" {
		t.Errorf("tags query = %q, want %q", gotQuery, "blue_sky cloud")
	}
}

func TestExecute_PostPayloadBecomesForm(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()

	var gotContentType, gotPostID string
	mock.SetHandler("/favorites.json", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotPostID = r.PostForm.Get("post_id")
		w.WriteHeader(http.StatusCreated)
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/favorites.json", http.MethodPost, nil, map[string][]string{
		"post_id": {"12345"},
	})
	if _, err := s.Await(context.Background(), jobID, 5*time.Second); err != nil {
		t.Fatalf("Await() error = %v", err)
	}

	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotPostID != "12345" {
		t.Errorf("post_id = %q, want %q", gotPostID, "12345")
	}
}

func TestExecute_HeadersApplied(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()

	var gotAuth string
	mock.SetHandler("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, map[string]string{
		"Authorization": "Basic dXNlcjprZXk=",
	}, nil)
	if _, err := s.Await(context.Background(), jobID, 5*time.Second); err != nil {
		t.Fatalf("Await() error = %v", err)
	}

	if gotAuth != "Basic dXNlcjprZXk=" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestExecute_ErrorStatusStored(t *testing.T) {
	mock := testutil.NewMockBoard()
	defer mock.Close()
	mock.SetResponse("/posts.json", testutil.NewThrottledResponse())

	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit(mock.URL()+"/posts.json", http.MethodGet, nil, nil)

	res, err := s.Await(context.Background(), jobID, 5*time.Second)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil for an HTTP error status", res.Err)
	}
	if res.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusTooManyRequests)
	}
	if res.OK() {
		t.Error("OK() = true for status 429, want false")
	}
}

func TestExecute_TransportError(t *testing.T) {
	s := newTestScheduler(DefaultConfig())
	jobID := s.Submit("http://127.0.0.1:1/unreachable.json", http.MethodGet, nil, nil)

	res, err := s.Await(context.Background(), jobID, 5*time.Second)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if res.Err == nil {
		t.Fatal("Err = nil, want transport error")
	}
	if res.OK() {
		t.Error("OK() = true for transport error, want false")
	}
}
