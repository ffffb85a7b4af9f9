package alert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	RuleChange = "change_percent"
	RuleAbove  = "price_above"
	RuleBelow  = "price_below"
)

type Notifier interface {
	Send(msg string)
}

// Limits holds the alert thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	ChangePercent float64 // absolute move, e.g. 1.5 fires on ±1.5%
	Above         float64
	Below         float64
}

func (l Limits) Enabled() bool {
	return l.ChangePercent > 0 || l.Above > 0 || l.Below > 0
}

// Breach is one tripped threshold.
type Breach struct {
	Rule      string
	Value     float64
	Threshold float64
}

func (b *Breach) Error() string {
	switch b.Rule {
	case RuleChange:
		return fmt.Sprintf("price moved %.2f%% (threshold: ±%.2f%%)", b.Value, b.Threshold)
	case RuleAbove:
		return fmt.Sprintf("price $%.2f above $%.2f", b.Value, b.Threshold)
	default:
		return fmt.Sprintf("price $%.2f below $%.2f", b.Value, b.Threshold)
	}
}

// Watcher notifies when an observation crosses a threshold. A rule fires
// once when it trips and re-arms after an observation clears it.
type Watcher struct {
	limits   Limits
	notifier Notifier
	log      logrus.FieldLogger
	onFire   func(rule string)

	mu     sync.Mutex
	active map[string]bool
}

func NewWatcher(limits Limits, notifier Notifier, log logrus.FieldLogger, onFire func(rule string)) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		limits:   limits,
		notifier: notifier,
		log:      log,
		onFire:   onFire,
		active:   make(map[string]bool),
	}
}

// Check returns nil if obs is within limits, otherwise every breach
// joined into one error.
func (w *Watcher) Check(obs models.PriceObservation) error {
	breaches := w.breaches(obs)
	if len(breaches) == 0 {
		return nil
	}
	errs := make([]error, len(breaches))
	for i, b := range breaches {
		errs[i] = b
	}
	return errors.Join(errs...)
}

func (w *Watcher) breaches(obs models.PriceObservation) []*Breach {
	var out []*Breach
	if w.limits.ChangePercent > 0 && math.Abs(obs.ChangePercent) >= w.limits.ChangePercent {
		out = append(out, &Breach{Rule: RuleChange, Value: obs.ChangePercent, Threshold: w.limits.ChangePercent})
	}
	if w.limits.Above > 0 && obs.Price > w.limits.Above {
		out = append(out, &Breach{Rule: RuleAbove, Value: obs.Price, Threshold: w.limits.Above})
	}
	if w.limits.Below > 0 && obs.Price < w.limits.Below {
		out = append(out, &Breach{Rule: RuleBelow, Value: obs.Price, Threshold: w.limits.Below})
	}
	return out
}

// Observe evaluates one observation and notifies newly tripped rules.
// It returns the rules that fired.
func (w *Watcher) Observe(obs models.PriceObservation) []string {
	tripped := make(map[string]*Breach)
	if joined, ok := w.Check(obs).(interface{ Unwrap() []error }); ok {
		for _, err := range joined.Unwrap() {
			var b *Breach
			if errors.As(err, &b) {
				tripped[b.Rule] = b
			}
		}
	}

	w.mu.Lock()
	var fire []*Breach
	for _, rule := range []string{RuleChange, RuleAbove, RuleBelow} {
		b, on := tripped[rule]
		if on && !w.active[rule] {
			fire = append(fire, b)
		}
		w.active[rule] = on
	}
	w.mu.Unlock()

	fired := make([]string, 0, len(fire))
	for _, b := range fire {
		w.log.WithFields(logrus.Fields{"rule": b.Rule, "price": obs.Price}).Warn("Price alert triggered")
		if w.notifier != nil {
			w.notifier.Send(fmt.Sprintf("Gold alert: %s (source: %s)", b.Error(), obs.Source))
		}
		if w.onFire != nil {
			w.onFire(b.Rule)
		}
		fired = append(fired, b.Rule)
	}
	return fired
}

// Run consumes observations until ctx is done or ch is closed.
func (w *Watcher) Run(ctx context.Context, ch <-chan models.PriceObservation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-ch:
			if !ok {
				return
			}
			w.Observe(obs)
		}
	}
}
