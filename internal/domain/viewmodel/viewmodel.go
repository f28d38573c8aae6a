package viewmodel

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/domain/event"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
)

// Store is the read side of the transaction store
type Store interface {
	Snapshot() transaction.Snapshot
	Subscribe(fn func(transaction.Snapshot)) func()
}

// AccountSource reports the account of the current session
type AccountSource interface {
	AccountID() (int64, bool)
}

// Subscriber registers handlers for domain events
type Subscriber interface {
	Subscribe(topic event.Topic, handler event.Handler) func()
}

// View is one derived state: the filter and the records it selected
type View struct {
	Filter       transaction.Filter
	AccountID    int64
	StoreVersion uint64
	Records      []transaction.Transaction
}

type listener struct {
	id uint64
	fn func([]transaction.Transaction)
}

// ViewModel derives the filtered transaction list shown to the user and
// recomputes it when the store, the filter or a transfer changes it.
type ViewModel struct {
	store    Store
	accounts AccountSource
	events   Subscriber
	logger   *zap.Logger

	mu        sync.Mutex
	filter    transaction.Filter
	listeners []listener
	nextID    uint64
	unsubs    []func()

	current atomic.Pointer[View]
}

// New creates a view-model. events may be nil.
func New(store Store, accounts AccountSource, events Subscriber, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	vm := &ViewModel{
		store:    store,
		accounts: accounts,
		events:   events,
		logger:   logger.Named("viewmodel"),
		filter:   transaction.DefaultFilter(),
	}
	vm.current.Store(&View{Filter: vm.filter, Records: []transaction.Transaction{}})
	return vm
}

// Activate resets the filter to its default, starts following the store and
// transfer events, and recomputes the view.
func (vm *ViewModel) Activate() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.stopLocked()
	vm.filter = transaction.DefaultFilter()
	vm.unsubs = append(vm.unsubs, vm.store.Subscribe(func(snap transaction.Snapshot) {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		vm.recomputeLocked(snap)
	}))
	if vm.events != nil {
		vm.unsubs = append(vm.unsubs, vm.events.Subscribe(event.TopicTransferCompleted, func(ctx context.Context, e event.Event) {
			vm.Reload()
		}))
	}
	vm.recomputeLocked(vm.store.Snapshot())
}

// Deactivate stops following changes. The last derived view stays readable.
func (vm *ViewModel) Deactivate() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.stopLocked()
}

// SetFilter validates and applies a new filter, then recomputes the view
func (vm *ViewModel) SetFilter(direction transaction.Direction, dateRange *transaction.DateRange, searchText string) error {
	f := transaction.Filter{
		Direction:  direction,
		SearchText: transaction.NormalizeSearch(searchText),
	}
	if dateRange != nil {
		r := *dateRange
		f.DateRange = &r
	}
	if err := f.Validate(); err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = f
	vm.recomputeLocked(vm.store.Snapshot())
	return nil
}

// Reload recomputes the view from the latest store snapshot
func (vm *ViewModel) Reload() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.recomputeLocked(vm.store.Snapshot())
}

// Filter returns the current filter state
func (vm *ViewModel) Filter() transaction.Filter {
	return vm.current.Load().Filter
}

// Current returns the latest derived view with the filter that produced it
func (vm *ViewModel) Current() View {
	v := vm.current.Load()
	out := *v
	out.Records = copyRecords(v.Records)
	return out
}

// DerivedView returns the records of the latest derived view, newest first
func (vm *ViewModel) DerivedView() []transaction.Transaction {
	return copyRecords(vm.current.Load().Records)
}

// Recent returns at most n rows of the derived view
func (vm *ViewModel) Recent(n int) []transaction.Transaction {
	records := vm.current.Load().Records
	if n < 0 {
		n = 0
	}
	if n > len(records) {
		n = len(records)
	}
	return copyRecords(records[:n])
}

// Subscribe registers fn to receive every recomputed view. Callbacks run
// synchronously in registration order and must not call back into the
// view-model.
func (vm *ViewModel) Subscribe(fn func([]transaction.Transaction)) func() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.nextID++
	id := vm.nextID
	vm.listeners = append(vm.listeners, listener{id: id, fn: fn})

	return func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		for i, l := range vm.listeners {
			if l.id == id {
				vm.listeners = append(vm.listeners[:i:i], vm.listeners[i+1:]...)
				return
			}
		}
	}
}

func (vm *ViewModel) stopLocked() {
	for _, unsub := range vm.unsubs {
		unsub()
	}
	vm.unsubs = nil
}

// recomputeLocked must be called with mu held.
func (vm *ViewModel) recomputeLocked(snap transaction.Snapshot) {
	next := &View{
		Filter:       vm.filter,
		StoreVersion: snap.Version(),
		Records:      []transaction.Transaction{},
	}
	if accountID, ok := vm.accounts.AccountID(); ok {
		next.AccountID = accountID
		next.Records = transaction.Apply(snap.Records(), accountID, vm.filter)
	}

	// a late notification for an older snapshot must not replace a newer view
	if prev := vm.current.Load(); prev.StoreVersion > next.StoreVersion {
		return
	}
	vm.current.Store(next)

	vm.logger.Debug("view recomputed",
		zap.String("direction", string(next.Filter.Direction)),
		zap.Uint64("version", next.StoreVersion),
		zap.Int("count", len(next.Records)))

	for _, l := range vm.listeners {
		l.fn(copyRecords(next.Records))
	}
}

func copyRecords(records []transaction.Transaction) []transaction.Transaction {
	out := make([]transaction.Transaction, len(records))
	copy(out, records)
	return out
}
