package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"pivotboard/internal/cache"
	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/pivot"
	"pivotboard/internal/render"
	"pivotboard/internal/source"
	"pivotboard/internal/storage"
)

var (
	ErrNotFound    = errors.New("widget not found")
	ErrUnknownPath = errors.New("no row at path")
)

// DefaultSession is used when a request carries no session id.
const DefaultSession = "default"

// WidgetStore persists widgets, view state and adopted versions.
type WidgetStore interface {
	SaveWidget(ctx context.Context, w core.Widget) error
	GetWidget(ctx context.Context, id string) (core.Widget, error)
	ListWidgets(ctx context.Context) ([]core.Widget, error)
	DeleteWidget(ctx context.Context, id string) error
	LoadViewState(ctx context.Context, sessionID, widgetID string) ([]pivot.StateEntry, error)
	SaveViewState(ctx context.Context, sessionID, widgetID string, entries []pivot.StateEntry) error
	PruneViewState(ctx context.Context, widgetID string, paths [][]string) (int64, error)
	AdvanceVersion(ctx context.Context, widgetID string, version int64) (bool, error)
	Version(ctx context.Context, widgetID string) (int64, error)
}

var _ WidgetStore = (*storage.SQLiteRepository)(nil)

// Snapshot is an adopted build of a widget's table. Version is the
// upstream data version it reflects, 0 before any upstream message; Seq is
// the request ticket it was built for.
type Snapshot struct {
	Widget   core.Widget
	Version  int64
	Seq      int64
	Table    *pivot.Table
	Currency pivot.CurrencyContext
	Filters  []core.FilterClause
	BuiltAt  time.Time
}

type Options struct {
	CacheSize       int
	CacheTTL        time.Duration
	DefaultCurrency string
	FetchTimeout    time.Duration
}

// WidgetService builds pivot tables for widgets and keeps the latest build
// of each widget. Builds are adopted last-write-wins by request order: a
// build finishing after a later-issued one has been adopted is discarded.
type WidgetService struct {
	store  WidgetStore
	source source.ResultSource
	logger *log.Logger
	opts   Options
	now    func() time.Time

	meta   *cache.LRU[string, pivot.Metadata]
	tables *cache.LRU[string, *Snapshot]
	loads  singleflight.Group

	mu   sync.Mutex
	seqs map[string]*widgetSeq

	stateMu sync.Mutex
}

func NewWidgetService(store WidgetStore, src source.ResultSource, logger *log.Logger, opts Options) *WidgetService {
	if opts.CacheSize < 1 {
		opts.CacheSize = 256
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &WidgetService{
		store:  store,
		source: src,
		logger: logger.WithComponent(log.ComponentWidget),
		opts:   opts,
		now:    time.Now,
		meta:   cache.NewLRU[string, pivot.Metadata](opts.CacheSize, 0),
		tables: cache.NewLRU[string, *Snapshot](opts.CacheSize, opts.CacheTTL),
		seqs:   map[string]*widgetSeq{},
	}
}

// Caches exposes the expiring caches for periodic cleanup.
func (s *WidgetService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.meta, s.tables}
}

// SaveWidget validates the widget and its mapping and stores it. A missing
// id is generated. Mapping problems are returned as *pivot.ConfigError.
func (s *WidgetService) SaveWidget(ctx context.Context, w core.Widget) (core.Widget, error) {
	if strings.TrimSpace(w.ID) == "" {
		w.ID = uuid.NewString()
	}
	if err := w.Validate(); err != nil {
		return core.Widget{}, err
	}
	if _, err := s.metadata(w.Mapping); err != nil {
		return core.Widget{}, err
	}
	w.UpdatedAt = s.now().UTC()
	if err := s.store.SaveWidget(ctx, w); err != nil {
		return core.Widget{}, fmt.Errorf("save widget: %w", err)
	}
	s.tables.Delete(w.ID)
	s.logger.InfoContext(ctx, "widget saved", log.FieldWidgetID, w.ID, log.FieldDatasetID, w.Mapping.DatasetID)
	return w, nil
}

func (s *WidgetService) GetWidget(ctx context.Context, id string) (core.Widget, error) {
	w, err := s.store.GetWidget(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Widget{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return w, err
}

func (s *WidgetService) ListWidgets(ctx context.Context) ([]core.Widget, error) {
	return s.store.ListWidgets(ctx)
}

func (s *WidgetService) DeleteWidget(ctx context.Context, id string) error {
	if err := s.store.DeleteWidget(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	s.tables.Delete(id)
	s.mu.Lock()
	delete(s.seqs, id)
	s.mu.Unlock()
	return nil
}

// metadata parses a mapping, memoized by the mapping's content.
func (s *WidgetService) metadata(m core.WidgetMapping) (pivot.Metadata, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return pivot.Metadata{}, fmt.Errorf("encode mapping: %w", err)
	}
	sum := sha256.Sum256(b)
	key := hex.EncodeToString(sum[:])
	if md, ok := s.meta.Get(key); ok {
		return md, nil
	}
	md, err := pivot.ParseMapping(m)
	if err != nil {
		return pivot.Metadata{}, err
	}
	s.meta.Set(key, md)
	return md, nil
}

// Snapshot returns the adopted build of the widget, building it on first
// use. Concurrent cold loads of one widget share a single fetch, which is
// not cancelled when the caller that started it goes away.
func (s *WidgetService) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	if snap, ok := s.tables.Get(id); ok {
		return snap, nil
	}
	v, err, _ := s.loads.Do(id, func() (any, error) {
		if snap, ok := s.tables.Get(id); ok {
			return snap, nil
		}
		snap, _, err := s.Refresh(context.WithoutCancel(ctx), id, 0, nil)
		return snap, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Refresh fetches and rebuilds the widget's table.
//
// Every call takes a ticket from a per-widget sequence, and a finished build
// is adopted only if no later-issued build was adopted meanwhile. A positive
// version is an upstream data version: one not above the highest version
// already accepted is ignored without fetching. Nil filters reuse the
// widget's active filters; a non-nil slice, even empty, replaces them.
// When the build is not adopted the current snapshot is returned with
// adopted false.
func (s *WidgetService) Refresh(ctx context.Context, id string, version int64, filters []core.FilterClause) (*Snapshot, bool, error) {
	w, err := s.GetWidget(ctx, id)
	if err != nil {
		return nil, false, err
	}
	md, err := s.metadata(w.Mapping)
	if err != nil {
		return nil, false, err
	}
	logger := s.logger.WithWidget(id)

	t, err := s.issue(ctx, id, version, filters)
	if errors.Is(err, errStaleVersion) {
		logger.InfoContext(ctx, "ignoring stale upstream version", log.FieldVersion, version)
		snap, err := s.Snapshot(ctx, id)
		return snap, false, err
	}
	if err != nil {
		return nil, false, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	start := s.now()
	rs, err := s.source.Fetch(fetchCtx, core.Query{DatasetID: w.Mapping.DatasetID, Filters: t.filters})
	if err != nil {
		return nil, false, fmt.Errorf("fetch dataset %s: %w", w.Mapping.DatasetID, err)
	}

	table := pivot.Build(md, rs)
	snap := &Snapshot{
		Widget:   w,
		Version:  t.version,
		Seq:      t.seq,
		Table:    table,
		Currency: s.currency(w, rs),
		Filters:  t.filters,
		BuiltAt:  s.now(),
	}
	fields := log.NewFields().
		WithWidget(id, t.version).
		WithBuild(len(rs.Rows), table.Rows.Len(), len(table.Columns.Leaves), len(table.Warnings)).
		WithOperation(log.OpRefresh)
	fields[log.FieldDuration] = s.now().Sub(start).Milliseconds()
	fields["seq"] = t.seq
	if len(table.Warnings) > 0 {
		logger.WarnContext(ctx, "table built with data shape warnings", fields.ToSlice()...)
	} else {
		logger.InfoContext(ctx, "table built", fields.ToSlice()...)
	}

	if !s.adopt(snap) {
		logger.InfoContext(ctx, "discarding superseded build", "seq", t.seq)
		if current, ok := s.tables.Get(id); ok {
			return current, false, nil
		}
		return snap, false, nil
	}
	if t.version > 0 {
		if _, err := s.store.AdvanceVersion(ctx, id, t.version); err != nil {
			logger.ErrorContext(ctx, "failed to persist data version", log.FieldError, err.Error())
		}
	}
	return snap, true, nil
}

var errStaleVersion = errors.New("upstream version already seen")

// widgetSeq orders the refreshes of one widget.
type widgetSeq struct {
	issued   int64
	adopted  int64
	upstream int64
	seeded   bool
	filters  []core.FilterClause
}

type ticket struct {
	seq     int64
	version int64
	filters []core.FilterClause
}

// issue hands out the next request ticket. The upstream version starts
// from the persisted one so a restart does not replay old messages.
func (s *WidgetService) issue(ctx context.Context, id string, version int64, filters []core.FilterClause) (ticket, error) {
	s.mu.Lock()
	seeded := s.seq(id).seeded
	s.mu.Unlock()
	var persisted int64
	if !seeded {
		v, err := s.store.Version(ctx, id)
		if err != nil {
			return ticket{}, fmt.Errorf("load version: %w", err)
		}
		persisted = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.seq(id)
	if !ws.seeded {
		ws.upstream = max(ws.upstream, persisted)
		ws.seeded = true
	}
	if version > 0 {
		if version <= ws.upstream {
			return ticket{}, errStaleVersion
		}
		ws.upstream = version
	}
	if filters != nil {
		ws.filters = append([]core.FilterClause{}, filters...)
	}
	ws.issued++
	return ticket{seq: ws.issued, version: ws.upstream, filters: ws.filters}, nil
}

// seq returns the widget's sequence state. Callers hold s.mu.
func (s *WidgetService) seq(id string) *widgetSeq {
	ws, ok := s.seqs[id]
	if !ok {
		ws = &widgetSeq{}
		s.seqs[id] = ws
	}
	return ws
}

func (s *WidgetService) adopt(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.seq(snap.Widget.ID)
	if snap.Seq <= ws.adopted {
		return false
	}
	ws.adopted = snap.Seq
	s.tables.Set(snap.Widget.ID, snap)
	return true
}

func (s *WidgetService) currency(w core.Widget, rs core.ResultSet) pivot.CurrencyContext {
	switch {
	case w.Currency != "":
		return pivot.CurrencyFor(w.Currency)
	case rs.Currency != "":
		return pivot.CurrencyFor(rs.Currency)
	default:
		return pivot.CurrencyFor(s.opts.DefaultCurrency)
	}
}

// Grid renders the widget for a session.
func (s *WidgetService) Grid(ctx context.Context, id, session string) (render.Grid, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return render.Grid{}, err
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state, err := s.loadState(ctx, snap, session)
	if err != nil {
		return render.Grid{}, err
	}
	return render.Build(snap.Table, state, snap.Currency), nil
}

// SetExpanded expands or collapses the row at path for the session.
func (s *WidgetService) SetExpanded(ctx context.Context, id, session string, path []string, expanded bool) (render.Grid, error) {
	return s.updateState(ctx, id, session, path, log.OpExpand, func(st *pivot.ViewState) {
		st.SetExpanded(path, expanded)
	})
}

// TogglePercentage flips the percentage mode of the row at path only.
func (s *WidgetService) TogglePercentage(ctx context.Context, id, session string, path []string) (render.Grid, error) {
	return s.updateState(ctx, id, session, path, log.OpToggle, func(st *pivot.ViewState) {
		st.TogglePercentage(path)
	})
}

func (s *WidgetService) updateState(ctx context.Context, id, session string, path []string, op string, fn func(*pivot.ViewState)) (render.Grid, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return render.Grid{}, err
	}
	if _, ok := snap.Table.Rows.Lookup(path); !ok {
		return render.Grid{}, fmt.Errorf("%w: %v", ErrUnknownPath, path)
	}
	session = sessionOrDefault(session)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	state, err := s.loadState(ctx, snap, session)
	if err != nil {
		return render.Grid{}, err
	}
	fn(state)
	if err := s.store.SaveViewState(ctx, session, id, state.Entries()); err != nil {
		return render.Grid{}, fmt.Errorf("save view state: %w", err)
	}
	s.logger.DebugContext(ctx, "view state updated",
		log.FieldWidgetID, id, log.FieldSessionID, session, log.FieldOperation, op, log.FieldNodePath, strings.Join(path, "/"))
	return render.Build(snap.Table, state, snap.Currency), nil
}

// loadState restores the session's flags and drops those of vanished paths.
func (s *WidgetService) loadState(ctx context.Context, snap *Snapshot, session string) (*pivot.ViewState, error) {
	session = sessionOrDefault(session)
	entries, err := s.store.LoadViewState(ctx, session, snap.Widget.ID)
	if err != nil {
		return nil, fmt.Errorf("load view state: %w", err)
	}
	state := pivot.NewViewState(snap.Widget.PercentageMode)
	state.Restore(entries)
	if dropped := state.Prune(snap.Table.Rows); len(dropped) > 0 {
		if _, err := s.store.PruneViewState(ctx, snap.Widget.ID, dropped); err != nil {
			s.logger.WarnContext(ctx, "failed to prune view state", log.FieldWidgetID, snap.Widget.ID, log.FieldError, err.Error())
		}
	}
	return state, nil
}

// Drilldown returns the filter clauses selecting the raw rows behind the
// cell at rowPath and columnPath of the adopted build. Segments carry the
// values as the source stores them.
func (s *WidgetService) Drilldown(ctx context.Context, id string, rowPath, columnPath []string) ([]core.FilterClause, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	clauses, err := snap.Table.Drilldown(rowPath, columnPath)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "drilldown built", log.FieldWidgetID, id, "clauses", len(clauses))
	return clauses, nil
}

func sessionOrDefault(session string) string {
	if strings.TrimSpace(session) == "" {
		return DefaultSession
	}
	return session
}
