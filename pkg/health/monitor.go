package health

import (
	"github.com/jensneuse/abstractlogger"

	"github.com/jensneuse/graphql-migrate/pkg/rollout"
)

// Action records one monitor decision.
type Action struct {
	OperationID string `json:"operationId"`
	Status      Status `json:"status"`
	RolledBack  bool   `json:"rolledBack"`
}

// Monitor couples health checks to the rollout manager: every operation in
// a rolling-out state is checked, and unhealthy ones are rolled back.
// Advisory automation; manual overrides racing a monitor pass are accepted.
type Monitor struct {
	tracker *Tracker
	manager *rollout.Manager
	log     abstractlogger.Logger
}

func NewMonitor(tracker *Tracker, manager *rollout.Manager, logger abstractlogger.Logger) *Monitor {
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Monitor{tracker: tracker, manager: manager, log: logger}
}

// Evaluate runs one monitoring pass over all active rollouts.
func (m *Monitor) Evaluate() []Action {
	var actions []Action
	for _, flag := range m.manager.Flags() {
		if !flag.Enabled || flag.RolloutPercentage == 0 {
			continue
		}
		report := m.tracker.PerformHealthCheck(flag.OperationID)
		action := Action{OperationID: flag.OperationID, Status: report.Status}
		if report.Status == StatusUnhealthy {
			if err := m.manager.RollbackOperation(flag.OperationID); err != nil {
				m.log.Error("automated rollback failed",
					abstractlogger.String("operation", flag.OperationID),
					abstractlogger.Error(err),
				)
			} else {
				action.RolledBack = true
				m.log.Info("automated rollback triggered",
					abstractlogger.String("operation", flag.OperationID),
				)
			}
		}
		actions = append(actions, action)
	}
	return actions
}
