package order

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the persistence the order service needs. Implementations report
// missing orders with an error the caller can match (see storage.ErrNotFound).
type Store interface {
	SaveOrder(o Order) error
	GetOrder(ref string) (Order, error)
	UpdateOrderStatus(ref string, status Status, changedBy string, at time.Time) (Order, error)
	ListOrders(f Filter) ([]Order, error)
	StatusHistory(ref string) ([]StatusChange, error)
}

// Publisher fans status changes out to real-time subscribers.
type Publisher interface {
	PublishOrderStatus(o Order, previous Status)
}

// Notifier is told about newly placed orders. Calls are fire-and-forget.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order) error
}

type Service struct {
	store      Store
	publisher  Publisher
	notifier   Notifier
	normalizer *Normalizer
	strict     bool
	logger     *slog.Logger
	locks      *keyedMutex
	wg         sync.WaitGroup
}

type ServiceConfig struct {
	Strict bool
	Logger *slog.Logger
}

func NewService(store Store, publisher Publisher, notifier Notifier, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:      store,
		publisher:  publisher,
		notifier:   notifier,
		normalizer: NewNormalizer(),
		strict:     cfg.Strict,
		logger:     cfg.Logger,
		locks:      newKeyedMutex(),
	}
}

// Submit normalizes and persists a guest draft. In strict mode a draft that
// needs correcting is rejected with a *ValidationError.
func (s *Service) Submit(ctx context.Context, d Draft) (Order, []Correction, error) {
	var (
		o           Order
		corrections []Correction
	)
	if s.strict {
		var err error
		if o, err = s.normalizer.Validate(d); err != nil {
			return Order{}, nil, err
		}
	} else {
		o, corrections = s.normalizer.Normalize(d)
		for _, c := range corrections {
			s.logger.Info("order: corrected draft", "order_ref", o.Reference, "call_id", o.CallID, "correction", c.String())
		}
	}

	if err := s.store.SaveOrder(o); err != nil {
		return Order{}, corrections, fmt.Errorf("save order: %w", err)
	}
	s.logger.Info("order: placed", "order_ref", o.Reference, "call_id", o.CallID, "room", o.RoomNumber, "total", o.TotalAmount)

	if s.publisher != nil {
		s.publisher.PublishOrderStatus(o, "")
	}
	s.notify(ctx, o)
	return o, corrections, nil
}

func (s *Service) notify(ctx context.Context, o Order) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.notifier.OrderPlaced(context.WithoutCancel(ctx), o); err != nil {
			s.logger.Warn("order: notification failed", "order_ref", o.Reference, "error", err)
		}
	}()
}

// Transition applies a staff status change. Changes to the same order are
// serialized, and the change is published only after it was stored.
func (s *Service) Transition(ref string, to Status, changedBy string) (Order, error) {
	unlock := s.locks.lock(ref)
	defer unlock()

	current, err := s.store.GetOrder(ref)
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", ref, err)
	}
	if !CanTransition(current.Status, to) {
		return Order{}, &TransitionError{Reference: ref, From: current.Status, To: to}
	}

	updated, err := s.store.UpdateOrderStatus(ref, to, changedBy, time.Now().UTC())
	if err != nil {
		return Order{}, fmt.Errorf("update order %s: %w", ref, err)
	}
	s.logger.Info("order: status changed", "order_ref", ref, "from", current.Status, "to", to, "by", changedBy)

	if s.publisher != nil {
		s.publisher.PublishOrderStatus(updated, current.Status)
	}
	return updated, nil
}

func (s *Service) Get(ref string) (Order, error) {
	o, err := s.store.GetOrder(ref)
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", ref, err)
	}
	return o, nil
}

func (s *Service) List(f Filter) ([]Order, error) {
	orders, err := s.store.ListOrders(f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) History(ref string) ([]StatusChange, error) {
	if _, err := s.store.GetOrder(ref); err != nil {
		return nil, fmt.Errorf("get order %s: %w", ref, err)
	}
	changes, err := s.store.StatusHistory(ref)
	if err != nil {
		return nil, fmt.Errorf("status history %s: %w", ref, err)
	}
	return changes, nil
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
