package kitchen

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type taskClaimInput struct {
	ID         string `json:"id"`
	AssigneeID string `json:"assignee_id"`
}

func taskClaim() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityPrepTask,
		Command:  "claim",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("taskUnclaimed", "task has already been claimed",
				func(c guard.Context) bool {
					return c.Current.(model.PrepTask).Status == model.TaskPending
				}),
			guard.Block("validAssignee", "assignee is required to claim a task",
				func(c guard.Context) bool {
					return c.Proposed.(model.PrepTask).AssigneeID != ""
				}),
		},
		Load: loadPrepTask,
		Merge: func(current any, input map[string]any) (any, error) {
			var in taskClaimInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			t := current.(model.PrepTask)
			t.Status = model.TaskClaimed
			t.AssigneeID = in.AssigneeID
			return t, nil
		},
		Apply: applyPrepTask,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			t := p.Value.(model.PrepTask)
			return []model.DomainEvent{{
				Type:    model.EventTaskClaimed,
				Payload: map[string]any{"assignee_id": t.AssigneeID},
			}}
		},
	}
}

func taskStart() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityPrepTask,
		Command:  "start",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("taskClaimed", "task must be claimed before it can start",
				func(c guard.Context) bool {
					return c.Current.(model.PrepTask).Status == model.TaskClaimed
				}),
		},
		Load: loadPrepTask,
		Merge: func(current any, input map[string]any) (any, error) {
			t := current.(model.PrepTask)
			t.Status = model.TaskInProgress
			return t, nil
		},
		Apply: applyPrepTask,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			return []model.DomainEvent{{Type: model.EventTaskStarted, Payload: map[string]any{}}}
		},
	}
}

type taskCompleteInput struct {
	ID                string  `json:"id"`
	QuantityCompleted float64 `json:"quantity_completed"`
}

func taskComplete() *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityPrepTask,
		Command:  "complete",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("taskStarted", "task must be in progress before it can complete",
				func(c guard.Context) bool {
					return c.Current.(model.PrepTask).Status == model.TaskInProgress
				}),
			guard.Block("validQuantityCompleted", "completed quantity cannot be negative",
				func(c guard.Context) bool {
					return c.Proposed.(model.PrepTask).QuantityCompleted >= 0
				}),
		},
		Load: loadPrepTask,
		Merge: func(current any, input map[string]any) (any, error) {
			var in taskCompleteInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			t := current.(model.PrepTask)
			t.Status = model.TaskCompleted
			if _, ok := input["quantity_completed"]; ok {
				t.QuantityCompleted = in.QuantityCompleted
			}
			return t, nil
		},
		Apply: applyPrepTask,
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			t := p.Value.(model.PrepTask)
			return []model.DomainEvent{{
				Type:    model.EventTaskCompleted,
				Payload: map[string]any{"quantity_completed": t.QuantityCompleted},
			}}
		},
	}
}

func loadPrepTask(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
	return db.GetPrepTaskForUpdate(ctx, tx, tenantID, inputID(input))
}

func applyPrepTask(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
	t, err := db.UpdatePrepTask(ctx, tx, proposed.(model.PrepTask))
	if err != nil {
		return runtime.Persisted{}, err
	}
	return runtime.Persisted{ID: t.ID, Value: t}, nil
}
