package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

func TestStore_Empty(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, "--", s.FormattedPrice())
	_, ok := s.Current()
	assert.False(t, ok)
	_, ok = s.PriceChange()
	assert.False(t, ok)
	assert.Equal(t, "unknown", s.DataSource())
	assert.Equal(t, StateDisconnected, s.State())
	assert.True(t, s.LastUpdate().IsZero())
}

func TestStore_UpdateAndDerived(t *testing.T) {
	s := NewStore(0)
	fixed := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var seen []float64
	s.OnUpdate(func(o models.PriceObservation) { seen = append(seen, o.Price) })

	s.Update(models.PriceObservation{Price: 2034.123, Change: -3.2, ChangePercent: -0.16, Source: "upstream"})

	assert.Equal(t, "$2034.12", s.FormattedPrice())
	pc, ok := s.PriceChange()
	require.True(t, ok)
	assert.Equal(t, PriceChange{Value: -3.2, Percent: -0.16, IsPositive: false}, pc)
	assert.Equal(t, "upstream", s.DataSource())
	assert.Equal(t, fixed, s.LastUpdate())
	assert.Equal(t, []float64{2034.123}, seen)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, fixed, cur.Timestamp, "missing timestamp filled in")
}

func TestStore_ZeroChangeHasNoSummary(t *testing.T) {
	s := NewStore(0)
	s.Update(models.PriceObservation{Price: 2000})
	_, ok := s.PriceChange()
	assert.False(t, ok)
}

func TestStore_HistoryCapped(t *testing.T) {
	s := NewStore(0)
	for i := range 150 {
		s.Update(models.PriceObservation{Price: float64(2000 + i)})
	}
	hist := s.History()
	require.Len(t, hist, DefaultHistorySize)
	assert.Equal(t, 2050.0, hist[0].Price)
	assert.Equal(t, 2149.0, hist[99].Price)

	hist[0].Price = 0
	assert.Equal(t, 2050.0, s.History()[0].Price, "History returns a copy")

	s.ClearHistory()
	assert.Empty(t, s.History())
	_, ok := s.Current()
	assert.True(t, ok, "clearing history keeps the current price")
}

func TestStore_StateAndErrors(t *testing.T) {
	s := NewStore(5)
	var transitions []State
	s.OnStateChange(func(st State, _ error) { transitions = append(transitions, st) })

	boom := errors.New("boom")
	s.setState(StateConnecting, nil)
	s.setState(StateError, boom)
	assert.ErrorIs(t, s.Err(), boom)
	assert.False(t, s.Connected())

	s.setState(StateConnecting, nil)
	assert.ErrorIs(t, s.Err(), boom, "error survives until connected")
	s.setState(StateConnected, nil)
	assert.NoError(t, s.Err())
	assert.True(t, s.Connected())

	s.setState(StateConnected, nil)
	assert.Equal(t, []State{StateConnecting, StateError, StateConnecting, StateConnected}, transitions)

	s.SetError(boom)
	s.ClearError()
	assert.NoError(t, s.Err())
}
