package stream

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const DefaultHistorySize = 100

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// PriceChange summarises the move carried by the current price.
type PriceChange struct {
	Value      float64
	Percent    float64
	IsPositive bool
}

// Store is the dashboard's view of the feed: the current price, a bounded
// history and the connection state. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	size       int
	now        func() time.Time
	current    *models.PriceObservation
	history    []models.PriceObservation
	lastUpdate time.Time
	state      State
	err        error

	onUpdate func(models.PriceObservation)
	onState  func(State, error)
}

// NewStore keeps at most size history entries; size <= 0 means
// DefaultHistorySize.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Store{size: size, now: time.Now, state: StateDisconnected}
}

// OnUpdate registers fn to run after every accepted price.
func (s *Store) OnUpdate(fn func(models.PriceObservation)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// OnStateChange registers fn to run on every connection state transition.
func (s *Store) OnStateChange(fn func(State, error)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Update makes obs current and appends it to history, dropping the oldest
// entries beyond the cap. A zero timestamp is replaced by the local time.
func (s *Store) Update(obs models.PriceObservation) {
	s.mu.Lock()
	now := s.now()
	if obs.Timestamp.IsZero() {
		obs.Timestamp = now
	}
	s.current = &obs
	s.lastUpdate = now
	s.history = append(s.history, obs)
	if over := len(s.history) - s.size; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(obs)
	}
}

func (s *Store) Current() (models.PriceObservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.PriceObservation{}, false
	}
	return *s.current, true
}

// History returns a copy, oldest first.
func (s *Store) History() []models.PriceObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// FormattedPrice renders the current price as "$2034.12", or "--" when
// there is none.
func (s *Store) FormattedPrice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "--"
	}
	return fmt.Sprintf("$%.2f", s.current.Price)
}

// PriceChange reports false when there is no current price or it carries
// no change.
func (s *Store) PriceChange() (PriceChange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Change == 0 {
		return PriceChange{}, false
	}
	return PriceChange{
		Value:      s.current.Change,
		Percent:    s.current.ChangePercent,
		IsPositive: s.current.Change >= 0,
	}, true
}

// DataSource is the source tag of the current price, "unknown" if unset.
func (s *Store) DataSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Source == "" {
		return "unknown"
	}
	return s.current.Source
}

func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Connected() bool { return s.State() == StateConnected }

// Err is the last connection or fetch error, nil once cleared or after a
// successful connect.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// SetError records err without a state transition.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Store) setState(state State, err error) {
	s.mu.Lock()
	if s.state == state && err == nil {
		s.mu.Unlock()
		return
	}
	s.state = state
	switch {
	case err != nil:
		s.err = err
	case state == StateConnected:
		s.err = nil
	}
	fn := s.onState
	s.mu.Unlock()

	if fn != nil {
		fn(state, err)
	}
}
