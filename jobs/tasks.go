package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskMembershipWarmup preloads the membership cache for active projects.
	TaskMembershipWarmup = "authz:membership_warmup"
	// TaskRetentionSweep removes expired audit and idempotency rows.
	TaskRetentionSweep = "maintenance:retention_sweep"
	// TaskConfigReload re-reads the authorization table file and swaps it in.
	TaskConfigReload = "authz:config_reload"
)

// MembershipWarmupPayload narrows the warmup to one project when set.
type MembershipWarmupPayload struct {
	ProjectID string `json:"project_id,omitempty"`
}

// NewMembershipWarmupTask constructs a warmup task.
func NewMembershipWarmupTask(payload MembershipWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMembershipWarmup, data), nil
}

// NewRetentionSweepTask constructs a retention sweep task.
func NewRetentionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRetentionSweep, nil)
}

// NewConfigReloadTask constructs a config reload task.
func NewConfigReloadTask() *asynq.Task {
	return asynq.NewTask(TaskConfigReload, nil)
}
