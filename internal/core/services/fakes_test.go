package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// fakeRemote is an in-memory remote store keyed by identity key.
type fakeRemote struct {
	mu    sync.Mutex
	rows  map[string]map[string]map[string]any
	calls []string

	// writeErr, when set, decides the outcome of each write.
	writeErr func(op string, rec domain.Record) error

	// fetchErrs are returned by successive FetchAll calls before rows are served.
	fetchErrs []error

	// rawRows, when set for a table, is served verbatim by FetchAll.
	rawRows map[string][]json.RawMessage
}

var _ driven.RemoteStore = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:    make(map[string]map[string]map[string]any),
		rawRows: make(map[string][]json.RawMessage),
	}
}

func (f *fakeRemote) factory(domain.SyncSettings) (driven.RemoteStore, error) {
	return f, nil
}

func (f *fakeRemote) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeRemote) put(spec domain.TableSpec, rec domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putLocked(spec, rec)
}

func (f *fakeRemote) putLocked(spec domain.TableSpec, rec domain.Record) {
	t, ok := f.rows[spec.Name]
	if !ok {
		t = make(map[string]map[string]any)
		f.rows[spec.Name] = t
	}
	t[rec.IdentityKey] = spec.ToRemote(rec)
}

func (f *fakeRemote) row(table, key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[table][key]
}

func (f *fakeRemote) size(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[table])
}

func (f *fakeRemote) Create(_ context.Context, spec domain.TableSpec, rec domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.writeErr != nil {
		if err := f.writeErr("create", rec); err != nil {
			return err
		}
	}
	f.putLocked(spec, rec)
	return nil
}

func (f *fakeRemote) Update(_ context.Context, spec domain.TableSpec, rec domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update")
	if f.writeErr != nil {
		if err := f.writeErr("update", rec); err != nil {
			return err
		}
	}
	// PATCH on a missing row matches nothing.
	if _, ok := f.rows[spec.Name][rec.IdentityKey]; ok {
		f.putLocked(spec, rec)
	}
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, spec domain.TableSpec, identityKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	if f.writeErr != nil {
		if err := f.writeErr("delete", domain.Record{IdentityKey: identityKey}); err != nil {
			return err
		}
	}
	delete(f.rows[spec.Name], identityKey)
	return nil
}

func (f *fakeRemote) FetchAll(_ context.Context, spec domain.TableSpec) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch")
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		return nil, err
	}
	if raw, ok := f.rawRows[spec.Name]; ok {
		return raw, nil
	}

	keys := make([]string, 0, len(f.rows[spec.Name]))
	for k := range f.rows[spec.Name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		b, err := json.Marshal(f.rows[spec.Name][k])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRemote) FetchOne(_ context.Context, spec domain.TableSpec, identityKey string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[spec.Name][identityKey]
	if !ok {
		return nil, nil
	}
	return json.Marshal(row)
}

func (f *fakeRemote) FetchWhere(ctx context.Context, spec domain.TableSpec, _ ...driven.Filter) ([]json.RawMessage, error) {
	return f.FetchAll(ctx, spec)
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Publish(ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func serverError() error {
	return &domain.RemoteError{Op: "test", StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}
}

func clientError() error {
	return &domain.RemoteError{Op: "test", StatusCode: http.StatusBadRequest, Message: "bad request"}
}

func configuredSettings() domain.SyncSettings {
	s := domain.DefaultSyncSettings()
	s.Remote = domain.RemoteSettings{BaseURL: "https://example.test/rest/v1", APIKey: "key"}
	s.Retry.BaseDelay = time.Second
	s.Retry.FetchBaseDelay = 10 * time.Millisecond
	return s
}

func testCatalog() *domain.TableCatalog {
	c, err := domain.NewTableCatalog(domain.SubscriptionsTable)
	if err != nil {
		panic(err)
	}
	return c
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func subscriptionFields(userID, plan string) domain.Fields {
	return domain.Fields{"userId": userID, "plan": plan, "status": "active"}
}

// microRemote stores timestamps at microsecond precision like a Postgres
// timestamptz column.
type microRemote struct {
	*fakeRemote
}

func (m *microRemote) factory(domain.SyncSettings) (driven.RemoteStore, error) {
	return m, nil
}

func (m *microRemote) Create(ctx context.Context, spec domain.TableSpec, rec domain.Record) error {
	rec.UpdatedAt = rec.UpdatedAt.Truncate(time.Microsecond)
	return m.fakeRemote.Create(ctx, spec, rec)
}

func (m *microRemote) Update(ctx context.Context, spec domain.TableSpec, rec domain.Record) error {
	rec.UpdatedAt = rec.UpdatedAt.Truncate(time.Microsecond)
	return m.fakeRemote.Update(ctx, spec, rec)
}

// gatedRemote holds every FetchAll and Create until release is closed and
// tracks how many run at once.
type gatedRemote struct {
	*fakeRemote
	entered chan struct{}
	release chan struct{}

	gateMu    sync.Mutex
	active    int
	maxActive int
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{
		fakeRemote: newFakeRemote(),
		entered:    make(chan struct{}, 16),
		release:    make(chan struct{}),
	}
}

func (g *gatedRemote) factory(domain.SyncSettings) (driven.RemoteStore, error) {
	return g, nil
}

func (g *gatedRemote) enter() {
	g.gateMu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	g.gateMu.Unlock()

	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

func (g *gatedRemote) leave() {
	g.gateMu.Lock()
	g.active--
	g.gateMu.Unlock()
}

func (g *gatedRemote) peak() int {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()
	return g.maxActive
}

func (g *gatedRemote) FetchAll(ctx context.Context, spec domain.TableSpec) ([]json.RawMessage, error) {
	g.enter()
	defer g.leave()
	return g.fakeRemote.FetchAll(ctx, spec)
}

func (g *gatedRemote) Create(ctx context.Context, spec domain.TableSpec, rec domain.Record) error {
	g.enter()
	defer g.leave()
	return g.fakeRemote.Create(ctx, spec, rec)
}
