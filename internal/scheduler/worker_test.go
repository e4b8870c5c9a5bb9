package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/memory"
	"github.com/hamed0406/uptimeworker/internal/validate"
)

// --- fakes ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, contact, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, contact+": "+message)
	return f.err
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// failingUpdates wraps a CheckStore and rejects every Update.
type failingUpdates struct {
	CheckStore
}

func (failingUpdates) Update(context.Context, domain.Check) error {
	return errors.New("disk full")
}

type listError struct{ CheckStore }

func (listError) IDs(context.Context) ([]string, error) { return nil, errors.New("store offline") }

// blockingProber holds every probe until release is closed.
type blockingProber struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	b.calls.Add(1)
	<-b.release
	return domain.Success(200)
}

// --- helpers ---

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store    *memory.Store
	checks   *repo.Checks
	notifier *fakeNotifier
	logs     *observer.ObservedLogs
	worker   *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	store := memory.New()
	checks := repo.NewChecks(store)
	n := &fakeNotifier{}
	w := NewWorker(logger, checks, validate.New(), probe.NewHTTPProber(), NewAlerter(logger, n), time.Hour, 4)
	w.Now = func() time.Time { return fixedNow }
	w.Diagnose = nil
	return &harness{store: store, checks: checks, notifier: n, logs: logs, worker: w}
}

func rawFor(id, serverURL string) domain.RawCheck {
	return domain.RawCheck{
		ID:             id,
		OwnerContact:   "5551234567",
		Protocol:       "http",
		Host:           strings.TrimPrefix(serverURL, "http://"),
		Method:         "get",
		AcceptedCodes:  []int{200},
		TimeoutSeconds: 1,
	}
}

func (h *harness) seed(t *testing.T, raw domain.RawCheck) {
	t.Helper()
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := h.store.Create(context.Background(), domain.CollectionChecks, raw.ID, data); err != nil {
		t.Fatalf("seed %s: %v", raw.ID, err)
	}
}

func (h *harness) stored(t *testing.T, id string) domain.RawCheck {
	t.Helper()
	raw, err := h.checks.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("read %s: %v", id, err)
	}
	return raw
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(ts.Close)
	return ts
}

const idA = "aaaaaaaaaaaaaaaaaaaa"
const idB = "bbbbbbbbbbbbbbbbbbbb"

// --- end-to-end scenarios ---

func TestPass_FirstProbeUp_NoAlert(t *testing.T) {
	h := newHarness(t)
	ts := statusServer(t, 200)
	h.seed(t, rawFor(idA, ts.URL))

	stats := h.worker.RunPass(context.Background())

	if stats.Probed != 1 || stats.Up != 1 || stats.Alerts != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := h.stored(t, idA)
	if got.State != "up" {
		t.Fatalf("state = %q, want up", got.State)
	}
	if got.LastCheckedAt != fixedNow.UnixMilli() {
		t.Fatalf("lastCheckedAt = %d, want %d", got.LastCheckedAt, fixedNow.UnixMilli())
	}
	if msgs := h.notifier.messages(); len(msgs) != 0 {
		t.Fatalf("first probe must not alert, got %v", msgs)
	}
}

func TestPass_UpToDown_Alerts(t *testing.T) {
	h := newHarness(t)
	ts := statusServer(t, 500)
	raw := rawFor(idA, ts.URL)
	raw.State = "up"
	raw.LastCheckedAt = fixedNow.Add(-time.Minute).UnixMilli()
	h.seed(t, raw)

	stats := h.worker.RunPass(context.Background())

	if stats.Down != 1 || stats.Alerts != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := h.stored(t, idA); got.State != "down" {
		t.Fatalf("state = %q, want down", got.State)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("want one alert, got %v", msgs)
	}
	want := "5551234567: Alert: Your check for GET " + ts.URL + " is currently down"
	if msgs[0] != want {
		t.Fatalf("alert = %q\nwant    %q", msgs[0], want)
	}
}

func TestPass_Timeout_IsDown(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	raw := rawFor(idA, ts.URL)
	raw.State = "up"
	raw.LastCheckedAt = fixedNow.Add(-time.Minute).UnixMilli()
	h.seed(t, raw)

	start := time.Now()
	stats := h.worker.RunPass(context.Background())

	if time.Since(start) > 3*time.Second {
		t.Fatalf("pass ignored the check timeout: %s", time.Since(start))
	}
	if stats.Down != 1 || stats.Alerts != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := h.stored(t, idA); got.State != "down" {
		t.Fatalf("state = %q, want down", got.State)
	}
	if n := h.logs.FilterMessage("check_probe_failed").Len(); n != 1 {
		t.Fatalf("want one check_probe_failed log, got %d", n)
	}
}

func TestPass_MalformedCheckDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	ts := statusServer(t, 200)

	bad := rawFor(idA, ts.URL)
	bad.Method = ""
	h.seed(t, bad)
	h.seed(t, rawFor(idB, ts.URL))

	stats := h.worker.RunPass(context.Background())

	if stats.Listed != 2 || stats.Skipped != 1 || stats.Up != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := h.stored(t, idB); got.State != "up" {
		t.Fatalf("good check state = %q, want up", got.State)
	}
	if got := h.stored(t, idA); got.State != "" || got.LastCheckedAt != 0 {
		t.Fatalf("malformed check was touched: %+v", got)
	}
	entries := h.logs.FilterMessage("check_malformed").All()
	if len(entries) != 1 {
		t.Fatalf("want one check_malformed log, got %d", len(entries))
	}
	if id := entries[0].ContextMap()["check_id"]; id != idA {
		t.Fatalf("logged check_id = %v", id)
	}
}

// --- failure handling ---

func TestPass_UpdateFailureSuppressesAlert(t *testing.T) {
	h := newHarness(t)
	ts := statusServer(t, 500)
	raw := rawFor(idA, ts.URL)
	raw.State = "up"
	raw.LastCheckedAt = fixedNow.Add(-time.Minute).UnixMilli()
	h.seed(t, raw)
	h.worker.Checks = failingUpdates{h.checks}

	stats := h.worker.RunPass(context.Background())

	if stats.SaveFailed != 1 || stats.Alerts != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if msgs := h.notifier.messages(); len(msgs) != 0 {
		t.Fatalf("alert sent despite failed update: %v", msgs)
	}
	if h.logs.FilterMessage("check_update_error").Len() != 1 {
		t.Fatal("expected check_update_error log")
	}
}

func TestPass_NotifierFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("sms gateway down")
	ts := statusServer(t, 200)
	raw := rawFor(idA, ts.URL)
	raw.State = "down"
	raw.LastCheckedAt = fixedNow.Add(-time.Minute).UnixMilli()
	h.seed(t, raw)

	stats := h.worker.RunPass(context.Background())

	if stats.Alerts != 0 || len(h.notifier.messages()) != 1 {
		t.Fatalf("unexpected stats %+v / sends %v", stats, h.notifier.messages())
	}
	if got := h.stored(t, idA); got.State != "up" {
		t.Fatalf("state = %q, want up after failed notification", got.State)
	}
	if h.logs.FilterMessage("alert_send_error").Len() != 1 {
		t.Fatal("expected alert_send_error log")
	}
}

func TestPass_ListErrorEndsPass(t *testing.T) {
	h := newHarness(t)
	h.worker.Checks = listError{h.checks}

	stats := h.worker.RunPass(context.Background())

	if stats != (PassStats{}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h.logs.FilterMessage("worker_list_error").Len() != 1 {
		t.Fatal("expected worker_list_error log")
	}
}

func TestPass_UnreadableRecordSkipped(t *testing.T) {
	h := newHarness(t)
	_ = h.store.Create(context.Background(), domain.CollectionChecks, idA, []byte(`not json`))

	stats := h.worker.RunPass(context.Background())

	if stats.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h.logs.FilterMessage("check_read_error").Len() != 1 {
		t.Fatal("expected check_read_error log")
	}
}

// --- loop ---

func TestRun_SkipsOverlappingPasses(t *testing.T) {
	h := newHarness(t)
	h.seed(t, rawFor(idA, "127.0.0.1:1"))
	bp := &blockingProber{release: make(chan struct{})}
	h.worker.Prober = bp
	h.worker.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.worker.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.logs.FilterMessage("worker_pass_skipped").Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no skipped ticks while a pass was blocked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := bp.calls.Load(); n != 1 {
		t.Fatalf("probe started %d times while first pass was still running", n)
	}

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned before the in-flight pass finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(bp.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := h.stored(t, idA); got.State != "up" {
		t.Fatalf("in-flight pass was not persisted: %+v", got)
	}
}

func TestRun_PassesRepeat(t *testing.T) {
	h := newHarness(t)
	ts := statusServer(t, 200)
	h.seed(t, rawFor(idA, ts.URL))
	h.worker.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.worker.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for h.logs.FilterMessage("worker_pass_done").Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("worker did not keep running passes")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
