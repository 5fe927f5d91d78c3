// Package records persists finished diagnoses and their audit trail in
// PostgreSQL.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	apperrors "diagnosis-workers/internal/common/errors"
	"diagnosis-workers/internal/common/logger"
)

const (
	insertRecordSQL = `
		INSERT INTO diagnosis_records (
			id, process_instance_key, primary_condition_id, primary_score,
			reason, needs_clarification, symptoms, duration_days, urgency,
			result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	insertAuditSQL = `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	selectRecordSQL = `
		SELECT id, process_instance_key, primary_condition_id, primary_score,
		       reason, needs_clarification, symptoms, duration_days, urgency,
		       result, created_at
		FROM diagnosis_records
		WHERE id = $1`
)

// Record is one stored diagnosis. Result holds the full JSON envelope.
type Record struct {
	ID                 string          `json:"id"`
	ProcessInstanceKey int64           `json:"process_instance_key,omitempty"`
	PrimaryConditionID string          `json:"primary_condition_id"`
	PrimaryScore       float64         `json:"primary_score"`
	Reason             string          `json:"reason"`
	NeedsClarification bool            `json:"needs_clarification"`
	Symptoms           []string        `json:"symptoms"`
	DurationDays       *int            `json:"duration_days,omitempty"`
	Urgency            string          `json:"urgency,omitempty"`
	Result             json.RawMessage `json:"result"`
	CreatedAt          time.Time       `json:"created_at"`
}

type Repository struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Repository{db: db, log: log, now: time.Now}
}

// Save inserts rec. Saving the same id twice is a no-op, so a retried job
// never duplicates a record. It reports whether a row was written. The
// audit entry is best effort.
func (r *Repository) Save(ctx context.Context, rec *Record) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	result := rec.Result
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}

	var duration sql.NullInt64
	if rec.DurationDays != nil {
		duration = sql.NullInt64{Int64: int64(*rec.DurationDays), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, insertRecordSQL,
		rec.ID,
		rec.ProcessInstanceKey,
		rec.PrimaryConditionID,
		rec.PrimaryScore,
		rec.Reason,
		rec.NeedsClarification,
		pq.Array(rec.Symptoms),
		duration,
		rec.Urgency,
		[]byte(result),
		rec.CreatedAt,
	)
	if err != nil {
		return false, apperrors.NewDatabaseError("insert diagnosis record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewDatabaseError("insert diagnosis record", err)
	}
	if affected == 0 {
		r.log.Info("diagnosis record already stored", map[string]interface{}{"diagnosisId": rec.ID})
		return false, nil
	}

	details, _ := json.Marshal(map[string]interface{}{
		"primaryConditionId": rec.PrimaryConditionID,
		"reason":             rec.Reason,
		"urgency":            rec.Urgency,
		"processInstanceKey": rec.ProcessInstanceKey,
	})
	if _, err := r.db.ExecContext(ctx, insertAuditSQL,
		"diagnosis_recorded", "diagnosis", rec.ID, details, rec.CreatedAt,
	); err != nil {
		r.log.Warn("audit log insert failed", map[string]interface{}{
			"error":       err.Error(),
			"diagnosisId": rec.ID,
		})
	}
	return true, nil
}

// Get loads a record by id; a missing row is reported as (nil, nil).
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec      Record
		duration sql.NullInt64
		urgency  sql.NullString
		result   []byte
	)
	err := r.db.QueryRowContext(ctx, selectRecordSQL, id).Scan(
		&rec.ID,
		&rec.ProcessInstanceKey,
		&rec.PrimaryConditionID,
		&rec.PrimaryScore,
		&rec.Reason,
		&rec.NeedsClarification,
		pq.Array(&rec.Symptoms),
		&duration,
		&urgency,
		&result,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("select diagnosis record", err)
	}
	if duration.Valid {
		d := int(duration.Int64)
		rec.DurationDays = &d
	}
	rec.Urgency = urgency.String
	rec.Result = result
	return &rec, nil
}
