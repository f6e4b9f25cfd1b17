package kitchen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/angriff36/manifest/internal/guard"
	"github.com/angriff36/manifest/internal/model"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/storage"
)

type availabilitySetInput struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employee_id"`
	EffectiveDate time.Time `json:"effective_date"`
	StartMinute   int       `json:"start_minute"`
	EndMinute     int       `json:"end_minute"`
}

// availabilitySet upserts an employee availability window: with an id it
// rewrites the existing window, without one it creates a new row.
func availabilitySet(t Thresholds) *runtime.Definition {
	return &runtime.Definition{
		Entity:   model.EntityAvailability,
		Command:  "set",
		Kind:     runtime.KindUpdate,
		TargetID: inputID,
		Guards: []guard.Guard{
			guard.Block("validEmployee", "employee is required",
				func(c guard.Context) bool {
					return c.Proposed.(model.Availability).EmployeeID != ""
				}),
			guard.Block("validTimeRange", "start must be before end",
				func(c guard.Context) bool {
					a := c.Proposed.(model.Availability)
					return a.StartMinute >= 0 && a.StartMinute < a.EndMinute
				}),
			guard.Warn("warnShortNotice",
				fmt.Sprintf("availability set fewer than %d days in advance", t.ShortNoticeDays),
				func(c guard.Context) bool {
					a := c.Proposed.(model.Availability)
					return !a.EffectiveDate.Before(c.Now.AddDate(0, 0, t.ShortNoticeDays))
				}),
		},
		Load: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, input map[string]any) (any, error) {
			id := inputID(input)
			if id == "" {
				return nil, nil
			}
			a, err := db.GetAvailabilityForUpdate(ctx, tx, tenantID, id)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return a, nil
		},
		Merge: func(current any, input map[string]any) (any, error) {
			var in availabilitySetInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			a, existing := current.(model.Availability)
			if !existing {
				a = model.Availability{ID: in.ID, EmployeeID: in.EmployeeID}
			}
			if in.EmployeeID != "" {
				a.EmployeeID = in.EmployeeID
			}
			a.EffectiveDate = in.EffectiveDate
			a.StartMinute = in.StartMinute
			a.EndMinute = in.EndMinute
			return a, nil
		},
		Apply: func(ctx context.Context, tx pgx.Tx, db *storage.DB, tenantID string, proposed any) (runtime.Persisted, error) {
			a := proposed.(model.Availability)
			a.TenantID = tenantID

			var err error
			if a.ID == "" || a.CreatedAt.IsZero() {
				a, err = db.InsertAvailability(ctx, tx, a)
			} else {
				a, err = db.UpdateAvailability(ctx, tx, a)
			}
			if err != nil {
				return runtime.Persisted{}, err
			}
			return runtime.Persisted{ID: a.ID, Value: a}, nil
		},
		EventsFor: func(p runtime.Persisted) []model.DomainEvent {
			a := p.Value.(model.Availability)
			return []model.DomainEvent{{
				Type: model.EventAvailabilitySet,
				Payload: map[string]any{
					"employee_id":    a.EmployeeID,
					"effective_date": a.EffectiveDate.Format(time.RFC3339),
					"start_minute":   a.StartMinute,
					"end_minute":     a.EndMinute,
				},
			}}
		},
	}
}
