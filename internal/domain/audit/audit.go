package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	ActionRecompute       = "cpis.recompute"
	ActionScorecardExport = "cpis.scorecard.export"
	ActionSnapshotScore   = "cpis.score.snapshot"
	ActionScoresExport    = "cpis.scores.export"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Event is one audited action. After is stored as JSON.
type Event struct {
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	After      any
}

type Service struct {
	DB Execer
}

func New(db Execer) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, evt Event) error {
	if evt.TenantID == "" || evt.Action == "" {
		return errors.New("audit event requires tenant and action")
	}
	var afterJSON []byte
	if evt.After != nil {
		payload, err := json.Marshal(evt.After)
		if err != nil {
			return err
		}
		afterJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (tenant_id, actor_user_id, action, entity_type, entity_id, after_json, request_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, evt.TenantID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, afterJSON, evt.RequestID)
	return err
}
