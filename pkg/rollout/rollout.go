// Package rollout gates migrated operations behind per-operation feature
// flags: percentage-based routing with deterministic user assignment,
// segment overrides, checkpoints, and immediate or gradual rollback.
package rollout

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jensneuse/abstractlogger"
)

var ErrFlagNotFound = errors.New("feature flag not found")

// InvalidPercentageError reports a percentage outside [0,100]. Percentages
// are never silently clamped: clamping would mask caller bugs.
type InvalidPercentageError struct {
	Value int
}

func (e InvalidPercentageError) Error() string {
	return fmt.Sprintf("invalid rollout percentage %d, must be in [0,100]", e.Value)
}

const DefaultIncrement = 10

// FeatureFlag is the rollout state of one migrated operation. It is created
// once and mutated only through Manager transitions.
type FeatureFlag struct {
	Name              string    `json:"name"`
	OperationID       string    `json:"operationId"`
	Enabled           bool      `json:"enabled"`
	RolloutPercentage int       `json:"rolloutPercentage"`
	EnabledSegments   []string  `json:"enabledSegments,omitempty"`
	FallbackBehavior  string    `json:"fallbackBehavior,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (f *FeatureFlag) clone() *FeatureFlag {
	c := *f
	c.EnabledSegments = append([]string(nil), f.EnabledSegments...)
	return &c
}

// RoutingContext identifies the caller of a routing decision. UserID makes
// the decision sticky; anonymous callers draw uniformly per call.
type RoutingContext struct {
	UserID  string
	Segment string
}

// Manager owns all feature flags. Construct one per composition root; core
// logic never reaches for process-global state.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
	log   abstractlogger.Logger
}

func NewManager(logger abstractlogger.Logger) *Manager {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Manager{flags: make(map[string]*FeatureFlag), log: logger}
}

// CreateFeatureFlag registers an operation in the disabled state.
// Idempotent: an existing flag is returned unchanged.
func (m *Manager) CreateFeatureFlag(operationID string) *FeatureFlag {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flags[operationID]; ok {
		return f.clone()
	}
	now := time.Now()
	f := &FeatureFlag{
		Name:             "migration-" + operationID,
		OperationID:      operationID,
		FallbackBehavior: "original",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.flags[operationID] = f
	m.log.Debug("feature flag created", abstractlogger.String("operation", operationID))
	return f.clone()
}

// StartRollout enables the flag at the given percentage.
func (m *Manager) StartRollout(operationID string, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return InvalidPercentageError{Value: percentage}
	}
	return m.mutate(operationID, func(f *FeatureFlag) {
		f.Enabled = true
		f.RolloutPercentage = percentage
	})
}

// IncreaseRollout raises the percentage by delta, clamped at 100. A
// non-positive delta uses the default increment.
func (m *Manager) IncreaseRollout(operationID string, delta int) error {
	if delta <= 0 {
		delta = DefaultIncrement
	}
	return m.mutate(operationID, func(f *FeatureFlag) {
		f.RolloutPercentage += delta
		if f.RolloutPercentage > 100 {
			f.RolloutPercentage = 100
		}
	})
}

// PauseRollout disables the flag but preserves the percentage so the
// rollout can resume where it stopped.
func (m *Manager) PauseRollout(operationID string) error {
	return m.mutate(operationID, func(f *FeatureFlag) {
		f.Enabled = false
	})
}

// RollbackOperation disables the flag and resets the percentage. Calling it
// on an already rolled-back operation is a no-op, not an error.
func (m *Manager) RollbackOperation(operationID string) error {
	err := m.mutate(operationID, func(f *FeatureFlag) {
		f.Enabled = false
		f.RolloutPercentage = 0
	})
	if err == nil {
		m.log.Info("operation rolled back", abstractlogger.String("operation", operationID))
	}
	return err
}

// EnableForSegments replaces the segment list and forces the flag on.
func (m *Manager) EnableForSegments(operationID string, segments []string) error {
	return m.mutate(operationID, func(f *FeatureFlag) {
		f.EnabledSegments = append([]string(nil), segments...)
		f.Enabled = true
	})
}

// ShouldUseMigratedQuery is the routing decision. Disabled flags and
// unknown operations never route to the migrated query. A supplied segment
// is authoritative when the flag carries a segment list; otherwise users
// with a stable ID are assigned deterministically and anonymous callers
// draw uniformly.
func (m *Manager) ShouldUseMigratedQuery(operationID string, ctx RoutingContext) bool {
	m.mu.RLock()
	f, ok := m.flags[operationID]
	if !ok || !f.Enabled {
		m.mu.RUnlock()
		return false
	}
	pct := f.RolloutPercentage
	segments := f.EnabledSegments
	m.mu.RUnlock()

	if ctx.Segment != "" && len(segments) > 0 {
		for _, s := range segments {
			if s == ctx.Segment {
				return true
			}
		}
		return false
	}
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if ctx.UserID != "" {
		bucket := xxhash.Sum64String(ctx.UserID+":"+operationID) % 100
		return int(bucket) < pct
	}
	return rand.Intn(100) < pct
}

// Flag returns a copy of the flag state.
func (m *Manager) Flag(operationID string) (*FeatureFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flags[operationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, operationID)
	}
	return f.clone(), nil
}

// Flags lists all flags.
func (m *Manager) Flags() []*FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, f.clone())
	}
	return out
}

// Import seeds the manager with externally persisted flags, replacing any
// existing entry for the same operation.
func (m *Manager) Import(flags []*FeatureFlag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range flags {
		m.flags[f.OperationID] = f.clone()
	}
}

func (m *Manager) mutate(operationID string, fn func(*FeatureFlag)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flags[operationID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlagNotFound, operationID)
	}
	fn(f)
	f.UpdatedAt = time.Now()
	return nil
}
