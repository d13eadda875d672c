// Package controller owns the synchronization loop: it receives filesystem
// events, classifies them, debounces refreshes, and publishes an immutable
// board snapshot that readers consume lock-free.
package controller

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/planboard/planboard/internal/classify"
	"github.com/planboard/planboard/internal/hierarchy"
	"github.com/planboard/planboard/internal/item"
	"github.com/planboard/planboard/internal/loader"
	"github.com/planboard/planboard/internal/metastore"
	"github.com/planboard/planboard/internal/progress"
	"github.com/planboard/planboard/internal/propagate"
	"github.com/planboard/planboard/internal/sched"
	"github.com/planboard/planboard/internal/suppress"
	"github.com/planboard/planboard/internal/watch"
)

// Config carries the controller's tunables. Zero values select defaults;
// a negative Debounce or BatchQuiet disables the corresponding delay, which
// one-shot tools and tests use for synchronous behavior.
type Config struct {
	// Roots are the workspace directories scanned for documents.
	Roots []string
	// Debounce is the quiet period collapsing bursts of change events
	// into one refresh. Zero selects the default.
	Debounce time.Duration
	// BatchQuiet is the settling period after batch-operation marker
	// activity stops. Zero selects the default.
	BatchQuiet time.Duration
	// CacheSize bounds the metadata cache entry count. Zero selects the
	// default.
	CacheSize int
	// Markers are batch-operation marker files (VCS metadata). Activity
	// on a marker opens the suppression window.
	Markers []string
	// Logger receives diagnostics. Nil disables logging.
	Logger *log.Logger
}

// NoticeKind discriminates subscriber notifications.
type NoticeKind int

const (
	// NoticeRefresh signals that a full refresh completed and the whole
	// board snapshot was replaced.
	NoticeRefresh NoticeKind = iota
	// NoticeNode signals a single-node update; the rest of the board is
	// unchanged.
	NoticeNode
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeRefresh:
		return "refresh"
	case NoticeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Notice is pushed to subscribers after a refresh lands.
type Notice struct {
	Kind NoticeKind
	// ID and Path identify the affected item for NoticeNode.
	ID   string
	Path string
	At   time.Time
}

// View is a read-only projection of one board node.
type View struct {
	ID       string
	Label    string
	Type     item.Type
	Status   item.Status
	Priority item.Priority
	// Progress is the rendered completion summary ("3/5 (60%)"), empty
	// for leaf items and childless containers.
	Progress string
	Path     string
	// SpecPath is the linked specification document, empty when unset.
	SpecPath    string
	Parent      string
	DependsOn   []string
	Modified    time.Time
	HasChildren bool
}

// Stats is a point-in-time operational summary.
type Stats struct {
	Items            int
	Containers       int
	EventsSeen       uint64
	FullRefreshes    uint64
	PartialRefreshes uint64
	SuppressedEvents uint64
	Suppressed       bool
	Cache            metastore.Stats
	ByStatus         map[item.Status]int
	LastRefresh      time.Time
}

// boardState is one published generation of the board. It is immutable once
// stored; readers load it atomically and never see a half-built tree.
type boardState struct {
	forest    *hierarchy.Forest
	progress  map[string]progress.Info
	items     int
	generated time.Time
}

// Controller runs the synchronization loop. All mutation happens on a single
// goroutine draining a task channel; read accessors either consume the
// published snapshot lock-free or marshal onto the loop.
type Controller struct {
	cfg    Config
	logger *log.Logger

	store      *metastore.Store
	loader     *loader.Loader
	builder    *hierarchy.Builder
	engine     *propagate.Engine
	snaps      *classify.Snapshots
	sched      *sched.Scheduler
	suppressor *suppress.Suppressor

	state atomic.Pointer[boardState]

	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup

	// Loop-confined counters.
	eventsSeen       uint64
	fullRefreshes    uint64
	partialRefreshes uint64
	suppressedEvents uint64

	subMu sync.Mutex
	subs  []chan Notice

	closeOnce sync.Once
}

// New builds a controller, starts its loop, and performs the initial full
// refresh before returning. The returned controller is ready to serve reads
// and receive events.
func New(cfg Config) (*Controller, error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("no workspace roots configured")
	}

	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
	}

	var storeOpts []metastore.Option
	if cfg.CacheSize > 0 {
		storeOpts = append(storeOpts, metastore.WithMaxEntries(cfg.CacheSize))
	}
	if cfg.Logger != nil {
		storeOpts = append(storeOpts, metastore.WithLogger(cfg.Logger))
	}
	c.store = metastore.New(item.Parse, storeOpts...)
	c.loader = loader.New(cfg.Roots, c.store, cfg.Logger)
	c.builder = hierarchy.NewBuilder(cfg.Logger)
	c.engine = propagate.New(cfg.Logger)
	c.snaps = classify.NewSnapshots()

	delay := cfg.Debounce
	if delay == 0 {
		delay = sched.DefaultDelay
	} else if delay < 0 {
		delay = 0
	}
	// Timer callbacks fire on their own goroutine; marshal the work onto
	// the loop so component state stays loop-confined.
	c.sched = sched.New(delay,
		func() { c.post(c.refreshFull) },
		func(t sched.Target) { c.post(func() { c.refreshPartial(t) }) },
	)

	quiet := cfg.BatchQuiet
	if quiet == 0 {
		quiet = suppress.DefaultQuiet
	} else if quiet < 0 {
		quiet = 0
	}
	// Batch flush distrusts everything cached during the window: the
	// whole store is cleared and the refresh runs immediately rather
	// than waiting out another debounce.
	c.suppressor = suppress.New(cfg.Markers, quiet, func() {
		c.post(func() {
			c.logf("batch window closed; refreshing")
			c.store.Clear()
			c.sched.Cancel()
			c.refreshFull()
		})
	})

	c.wg.Add(1)
	go c.run()

	c.call(c.refreshFull)
	return c, nil
}

// MarkerDirs returns the directories a watcher must observe to see marker
// activity, in addition to the workspace roots.
func (c *Controller) MarkerDirs() []string {
	return c.suppressor.MarkerDirs()
}

// Notify feeds one filesystem event into the loop. It never blocks the
// caller beyond the loop's task buffer.
func (c *Controller) Notify(ev watch.Event) {
	c.post(func() { c.handleEvent(ev) })
}

// Refresh forces a synchronous full refresh, canceling any pending
// debounced one. It returns after the new snapshot is published.
func (c *Controller) Refresh() {
	c.call(func() {
		c.sched.Cancel()
		c.refreshFull()
	})
}

// ScheduleRefresh requests a debounced full refresh.
func (c *Controller) ScheduleRefresh() {
	c.post(func() { c.sched.ScheduleFull() })
}

// SchedulePartialRefresh requests a debounced single-node refresh.
func (c *Controller) SchedulePartialRefresh(id, path string) {
	c.post(func() { c.sched.SchedulePartial(sched.Target{ID: id, Path: path}) })
}

// Subscribe registers a notification channel. Slow subscribers drop
// notices rather than stalling the loop.
func (c *Controller) Subscribe() <-chan Notice {
	ch := make(chan Notice, 16)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// RootNodes returns views of the top-level nodes in display order.
func (c *Controller) RootNodes() []View {
	st := c.state.Load()
	if st == nil {
		return nil
	}
	views := make([]View, 0, len(st.forest.Roots))
	for _, n := range st.forest.Roots {
		views = append(views, c.view(st, n))
	}
	return views
}

// Children returns views of an item's direct children in display order.
// A nil slice means the item is unknown or childless.
func (c *Controller) Children(id string) []View {
	st := c.state.Load()
	if st == nil {
		return nil
	}
	n := st.forest.Lookup(id)
	if n == nil {
		return nil
	}
	views := make([]View, 0, len(n.Children))
	for _, child := range n.Children {
		views = append(views, c.view(st, child))
	}
	return views
}

// NodeView returns the current view of one item, overlaying the freshest
// cached metadata over the published tree so partial refreshes show updated
// titles without a full rebuild.
func (c *Controller) NodeView(id string) (View, bool) {
	var (
		v  View
		ok bool
	)
	c.call(func() {
		st := c.state.Load()
		if st == nil {
			return
		}
		n := st.forest.Lookup(id)
		if n == nil {
			return
		}
		v = c.view(st, n)
		if rec := c.store.Get(n.Item.Path); rec != nil && rec.ID == id {
			fresh := item.FromRecord(rec, n.Item.Path)
			v.Label = label(fresh)
			v.Status = fresh.EffectiveStatus()
			v.Priority = fresh.Priority
			v.SpecPath = fresh.SpecPath
			v.Modified = fresh.Modified
		}
		ok = true
	})
	return v, ok
}

// Stats returns a point-in-time operational summary.
func (c *Controller) Stats() Stats {
	var s Stats
	c.call(func() {
		s = Stats{
			EventsSeen:       c.eventsSeen,
			FullRefreshes:    c.fullRefreshes,
			PartialRefreshes: c.partialRefreshes,
			SuppressedEvents: c.suppressedEvents,
			Suppressed:       c.suppressor.Active(),
			Cache:            c.store.Stats(),
			ByStatus:         make(map[item.Status]int),
		}
		if st := c.state.Load(); st != nil {
			s.Items = st.items
			s.LastRefresh = st.generated
			st.forest.Walk(func(n *hierarchy.Node) {
				s.ByStatus[n.Item.EffectiveStatus()]++
				if n.Item.Type.IsContainer() {
					s.Containers++
				}
			})
		}
	})
	return s
}

// Close cancels pending timers, runs a final refresh so propagated statuses
// are persisted, and stops the loop. Idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.call(func() {
			c.sched.Cancel()
			c.suppressor.Cancel()
			c.refreshFull()
		})
		close(c.done)
		c.wg.Wait()
		c.subMu.Lock()
		for _, ch := range c.subs {
			close(ch)
		}
		c.subs = nil
		c.subMu.Unlock()
	})
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.tasks:
			fn()
		case <-c.done:
			// Drain anything already queued so posted work is not
			// silently dropped at shutdown.
			for {
				select {
				case fn := <-c.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

func (c *Controller) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.done:
	}
}

// call posts fn onto the loop and waits for it to run. After Close it
// returns immediately without running fn.
func (c *Controller) call(fn func()) {
	ran := make(chan struct{})
	c.post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-c.done:
	}
}

// handleEvent routes one filesystem event: marker activity feeds the
// suppressor, document changes are classified against the last accepted
// snapshot, and a refresh of matching scope is scheduled.
func (c *Controller) handleEvent(ev watch.Event) {
	c.eventsSeen++

	if c.suppressor.IsMarker(ev.Path) {
		c.suppressor.MarkerChanged()
		return
	}
	if filepath.Ext(ev.Path) != ".md" {
		return
	}

	c.store.Invalidate(ev.Path)

	if c.suppressor.Active() {
		// Batch window: per-event classification is skipped; the flush
		// triggers one full refresh covering everything that changed.
		c.suppressedEvents++
		return
	}

	prev := c.snaps.Get(ev.Path)
	var rec *item.Record
	if ev.Op != watch.OpDelete {
		rec = c.store.Get(ev.Path)
	}
	res := classify.Classify(prev, rec)
	c.snaps.Accept(ev.Path, res.Next)

	switch res.Kind {
	case classify.KindStructure:
		c.logf("structure change: %s (%s)", ev.Path, ev.Op)
		c.sched.ScheduleFull()
	case classify.KindContent:
		id := res.Next.ID
		if id == "" {
			id = prev.ID
		}
		c.logf("content change: %s (%s)", id, ev.Path)
		c.sched.SchedulePartial(sched.Target{ID: id, Path: ev.Path})
	default:
		// Body-only edits do not affect the board.
	}
}

// refreshFull rebuilds the whole board: rescan, relink, propagate container
// statuses bottom-up, and publish a new snapshot. Propagation writes are
// folded into the same cycle by reloading once, so the published state and
// the snapshot store already reflect them and the echoed filesystem events
// classify as body-only.
func (c *Controller) refreshFull() {
	start := time.Now()

	c.loader.InvalidateAll()
	items := c.loader.Load()
	forest := c.builder.Build(items)

	updates := c.engine.Run(forest)
	if len(updates) > 0 {
		for _, u := range updates {
			c.store.Invalidate(u.Path)
		}
		c.loader.InvalidateAll()
		items = c.loader.Load()
		forest = c.builder.Build(items)
	}

	c.snaps.Seed(items)

	agg := progress.NewAggregator()
	prog := make(map[string]progress.Info)
	forest.Walk(func(n *hierarchy.Node) {
		if info, ok := agg.For(n); ok {
			prog[n.Item.ID] = info
		}
	})

	c.state.Store(&boardState{
		forest:    forest,
		progress:  prog,
		items:     len(items),
		generated: time.Now(),
	})
	c.fullRefreshes++

	c.logf("full refresh: %d items, %d propagated, %s",
		len(items), len(updates), time.Since(start).Round(time.Millisecond))
	c.notify(Notice{Kind: NoticeRefresh, At: time.Now()})
}

// refreshPartial re-reads one document and tells subscribers to repaint that
// node. The tree shape is untouched; anything structural was already routed
// to a full refresh.
func (c *Controller) refreshPartial(t sched.Target) {
	if rec := c.store.Get(t.Path); rec != nil {
		c.snaps.Accept(t.Path, classify.Take(rec))
	}
	c.partialRefreshes++
	c.logf("partial refresh: %s", t.ID)
	c.notify(Notice{Kind: NoticeNode, ID: t.ID, Path: t.Path, At: time.Now()})
}

func (c *Controller) view(st *boardState, n *hierarchy.Node) View {
	v := View{
		ID:          n.Item.ID,
		Label:       label(n.Item),
		Type:        n.Item.Type,
		Status:      n.Item.EffectiveStatus(),
		Priority:    n.Item.Priority,
		Path:        n.Item.Path,
		SpecPath:    n.Item.SpecPath,
		Parent:      n.Item.Parent,
		DependsOn:   n.Item.DependsOn,
		Modified:    n.Item.Modified,
		HasChildren: len(n.Children) > 0,
	}
	if info, ok := st.progress[n.Item.ID]; ok {
		v.Progress = info.Display
	}
	return v
}

func label(it item.WorkItem) string {
	if it.Title == "" {
		return it.ID
	}
	return fmt.Sprintf("%s: %s", it.ID, it.Title)
}

func (c *Controller) notify(n Notice) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
			// Subscriber is behind; dropping is better than stalling
			// the loop.
		}
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
