package rollout

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"
)

// FlagState is the restorable part of a feature flag.
type FlagState struct {
	Enabled           bool     `json:"enabled"`
	RolloutPercentage int      `json:"rolloutPercentage"`
	EnabledSegments   []string `json:"enabledSegments,omitempty"`
}

// Checkpoint snapshots flag state for a set of operations. Checkpoints are
// caller-owned: they never expire on their own.
type Checkpoint struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	States    map[string]FlagState `json:"states"`
}

type Strategy string

const (
	StrategyImmediate Strategy = "immediate"
	StrategyGradual   Strategy = "gradual"
)

// Plan references a checkpoint and says how to back out the operations it
// covers.
type Plan struct {
	CheckpointID string   `json:"checkpointId"`
	Operations   []string `json:"operations"`
	Strategy     Strategy `json:"strategy"`
}

// RollbackConfig tunes gradual rollback; GradualWait is the pause between
// halving and disabling.
type RollbackConfig struct {
	GradualWait time.Duration
}

func DefaultRollbackConfig() RollbackConfig {
	return RollbackConfig{GradualWait: 30 * time.Second}
}

// Rollbacker creates checkpoints and executes rollback plans against a
// Manager.
type Rollbacker struct {
	manager *Manager
	cfg     RollbackConfig
	log     abstractlogger.Logger

	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

func NewRollbacker(manager *Manager, cfg RollbackConfig, logger abstractlogger.Logger) *Rollbacker {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Rollbacker{
		manager:     manager,
		cfg:         cfg,
		log:         logger,
		checkpoints: make(map[string]*Checkpoint),
	}
}

// CreateCheckpoint snapshots the named operations' flags.
func (r *Rollbacker) CreateCheckpoint(operationIDs ...string) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		States:    make(map[string]FlagState, len(operationIDs)),
	}
	for _, id := range operationIDs {
		f, err := r.manager.Flag(id)
		if err != nil {
			return nil, err
		}
		cp.States[id] = FlagState{
			Enabled:           f.Enabled,
			RolloutPercentage: f.RolloutPercentage,
			EnabledSegments:   f.EnabledSegments,
		}
	}
	r.mu.Lock()
	r.checkpoints[cp.ID] = cp
	r.mu.Unlock()
	return cp, nil
}

// Checkpoint returns a stored checkpoint by ID.
func (r *Rollbacker) Checkpoint(id string) (*Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp, ok := r.checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("checkpoint not found: %s", id)
	}
	return cp, nil
}

// Restore re-applies a checkpoint's flag states.
func (r *Rollbacker) Restore(cp *Checkpoint) error {
	for id, state := range cp.States {
		// The percentage is part of the snapshot even for a disabled flag,
		// so it is set before the enabled state is applied.
		if err := r.manager.StartRollout(id, state.RolloutPercentage); err != nil {
			return err
		}
		if !state.Enabled {
			if err := r.manager.PauseRollout(id); err != nil {
				return err
			}
		}
		if len(state.EnabledSegments) > 0 {
			if err := r.manager.EnableForSegments(id, state.EnabledSegments); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecuteRollback runs a plan. Immediate disables every operation
// synchronously. Gradual halves each operation's percentage, waits, then
// fully disables; operations already disabled are skipped. A failure aborts
// the call; partially-applied rollbacks are retried per operation via
// Manager.RollbackOperation.
func (r *Rollbacker) ExecuteRollback(plan *Plan) error {
	switch plan.Strategy {
	case StrategyImmediate:
		for _, id := range plan.Operations {
			if err := r.manager.RollbackOperation(id); err != nil {
				r.log.Error("rollback failed", abstractlogger.String("operation", id), abstractlogger.Error(err))
				return err
			}
		}
		return nil
	case StrategyGradual:
		var active []string
		for _, id := range plan.Operations {
			f, err := r.manager.Flag(id)
			if err != nil {
				r.log.Error("rollback failed", abstractlogger.String("operation", id), abstractlogger.Error(err))
				return err
			}
			if !f.Enabled {
				continue
			}
			if err := r.manager.StartRollout(id, f.RolloutPercentage/2); err != nil {
				return err
			}
			active = append(active, id)
		}
		if len(active) > 0 && r.cfg.GradualWait > 0 {
			time.Sleep(r.cfg.GradualWait)
		}
		for _, id := range active {
			if err := r.manager.RollbackOperation(id); err != nil {
				r.log.Error("rollback failed", abstractlogger.String("operation", id), abstractlogger.Error(err))
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown rollback strategy: %q", plan.Strategy)
	}
}
