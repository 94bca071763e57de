// Package backend serves the history engine from the local ledger store,
// playing the part of the chain scanner. Requests are handled on a worker
// pool; results are posted back to the engine goroutine.
package backend

import (
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/history"
	"github.com/vasylcode/walhist/internal/model"
	"go.uber.org/zap"
)

// Store is the part of the ledger store the feed reads
type Store interface {
	Symbols() []model.Symbol
	Latest(symbol model.Symbol, limit int) model.TransactionsSlice
	Page(symbol model.Symbol, before model.TransactionID, limit int) model.LoadedSlice
	ListPending() []model.PendingTransaction
	Owners() map[string]string
}

// Options configure a Feed
type Options struct {
	Store  Store
	Poster events.Poster
	// Key opens encrypted comments. Without it every decrypt fails.
	Key       *[32]byte
	PageSize  int
	Workers   int
	QueueSize int
	Logger    *zap.Logger
}

// Feed answers engine requests from a Store
type Feed struct {
	log    *zap.Logger
	store  Store
	storeM sync.Mutex
	poster events.Poster
	key    *[32]byte
	size   int
	pool   pond.Pool
	jobs   sync.WaitGroup
	closed atomic.Bool

	inFlight  *xsync.Map[history.PreloadRequest, struct{}]
	directory *xsync.Map[string, string]

	state     *events.Stream[model.HistoryState]
	loaded    *events.Stream[model.LoadedSlice]
	decrypted *events.Stream[[]model.Transaction]
	owners    *events.Stream[map[string]string]
}

// New creates a feed and loads the owner directory from the store
func New(opts Options) *Feed {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize < 16 {
		opts.QueueSize = 16
	}

	f := &Feed{
		log:       opts.Logger.Named("backend"),
		store:     opts.Store,
		poster:    opts.Poster,
		key:       opts.Key,
		size:      opts.PageSize,
		pool:      pond.NewPool(opts.Workers, pond.WithQueueSize(opts.QueueSize)),
		inFlight:  xsync.NewMap[history.PreloadRequest, struct{}](),
		directory: xsync.NewMap[string, string](),
		state:     events.NewStream[model.HistoryState](),
		loaded:    events.NewStream[model.LoadedSlice](),
		decrypted: events.NewStream[[]model.Transaction](),
		owners:    events.NewStream[map[string]string](),
	}
	f.ReloadOwners()
	return f
}

// Sources returns the feed's result streams. CollectEncrypted and
// SelectedAsset belong to the caller and are left nil.
func (f *Feed) Sources() history.Sources {
	return history.Sources{
		State:              f.state,
		Loaded:             f.loaded,
		UpdateDecrypted:    f.decrypted,
		UpdateWalletOwners: f.owners,
	}
}

// Connect subscribes the feed to the requests of h until the returned
// function is called
func (f *Feed) Connect(h *history.History) func() {
	var lifetime events.Lifetime
	events.Attach(&lifetime, h.PreloadRequests(), f.Preload)
	events.Attach(&lifetime, h.DecryptRequests(), func(tx model.Transaction) {
		f.Decrypt([]model.Transaction{tx})
	})
	events.Attach(&lifetime, h.OwnerResolutionRequests(), f.Resolve)
	return lifetime.Destroy
}

// Snapshot builds the current history state: the newest page of every
// symbol and the full pending list
func (f *Feed) Snapshot() model.HistoryState {
	f.storeM.Lock()
	defer f.storeM.Unlock()

	state := model.HistoryState{
		LastTransactions:    make(map[model.Symbol]model.TransactionsSlice),
		PendingTransactions: f.store.ListPending(),
	}
	for _, symbol := range f.store.Symbols() {
		state.LastTransactions[symbol] = f.store.Latest(symbol, f.size)
	}
	return state
}

// Publish posts a fresh snapshot to the engine
func (f *Feed) Publish() {
	snapshot := f.Snapshot()
	f.log.Debug("publishing history state",
		zap.Int("symbols", len(snapshot.LastTransactions)),
		zap.Int("pending", len(snapshot.PendingTransactions)))
	f.poster.Post(func() { f.state.Fire(snapshot) })
}

// Preload loads the page older than the request cursor. A request already
// being served is dropped.
func (f *Feed) Preload(req history.PreloadRequest) {
	if _, loading := f.inFlight.LoadOrStore(req, struct{}{}); loading {
		return
	}
	ok := f.submit(func() {
		f.storeM.Lock()
		page := f.store.Page(req.Symbol, req.Cursor, f.size)
		f.storeM.Unlock()

		f.log.Debug("page loaded",
			zap.Stringer("symbol", req.Symbol),
			zap.Stringer("cursor", req.Cursor),
			zap.Int("transactions", len(page.List)))
		f.poster.Post(func() {
			f.loaded.Fire(page)
			f.inFlight.Delete(req)
		})
	})
	if !ok {
		f.inFlight.Delete(req)
	}
}

// Decrypt opens the comments of list and delivers every transaction back,
// still encrypted when it could not be opened
func (f *Feed) Decrypt(list []model.Transaction) {
	if len(list) == 0 {
		return
	}
	f.submit(func() {
		result := make([]model.Transaction, 0, len(list))
		failed := 0
		for _, tx := range list {
			out := decryptTransaction(f.key, tx)
			if out.IsEncrypted() {
				failed++
			}
			result = append(result, out)
		}
		if failed > 0 {
			f.log.Warn("comments left encrypted", zap.Int("failed", failed), zap.Int("total", len(list)))
		}
		f.poster.Post(func() { f.decrypted.Fire(result) })
	})
}

// DecryptAll collects every encrypted transaction of the engine through
// collect and decrypts them in one batch. It must run on the engine goroutine.
func (f *Feed) DecryptAll(collect *events.Stream[*[]model.Transaction]) int {
	var list []model.Transaction
	collect.Fire(&list)
	f.Decrypt(list)
	return len(list)
}

// Resolve looks the requested addresses up in the owner directory. Addresses
// without an entry are left out and asked again on a later pass.
func (f *Feed) Resolve(req history.OwnerResolutionRequest) {
	f.submit(func() {
		names := make(map[string]string, len(req.Addresses))
		for _, address := range req.Addresses {
			if name, ok := f.directory.Load(address); ok {
				names[address] = name
			}
		}
		if len(names) == 0 {
			return
		}
		f.log.Debug("owners resolved",
			zap.Stringer("symbol", req.Symbol),
			zap.Int("requested", len(req.Addresses)),
			zap.Int("resolved", len(names)))
		f.poster.Post(func() { f.owners.Fire(names) })
	})
}

// ReloadOwners refreshes the owner directory from the store
func (f *Feed) ReloadOwners() {
	f.storeM.Lock()
	owners := f.store.Owners()
	f.storeM.Unlock()

	f.directory.Clear()
	for address, name := range owners {
		f.directory.Store(address, name)
	}
}

// Wait blocks until every submitted job finished and posted its result
func (f *Feed) Wait() {
	f.jobs.Wait()
}

// Settle alternates between running posted results on loop and waiting for
// jobs until neither has work left. It must run on the loop's goroutine.
func (f *Feed) Settle(loop *events.Loop) {
	for {
		f.Wait()
		if loop.Drain() == 0 {
			return
		}
	}
}

// Close stops the worker pool after running queued jobs
func (f *Feed) Close() {
	if f.closed.Swap(true) {
		return
	}
	f.pool.StopAndWait()
}

func (f *Feed) submit(job func()) bool {
	if f.closed.Load() {
		return false
	}
	f.jobs.Add(1)
	// Close may stop the pool between the check above and here.
	if err := f.pool.Go(func() {
		defer f.jobs.Done()
		job()
	}); err != nil {
		f.jobs.Done()
		f.log.Debug("feed job dropped", zap.Error(err))
		return false
	}
	return true
}
