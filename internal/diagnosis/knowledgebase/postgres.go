// internal/diagnosis/knowledgebase/postgres.go
package knowledgebase

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	apperrors "diagnosis-workers/internal/common/errors"
)

const (
	selectConditionsSQL = `
		SELECT id, name, symptoms, explanation, duration_min, duration_max,
		       is_chronic, specialists, code
		FROM conditions
		ORDER BY id
		LIMIT $1`

	selectKeywordsSQL = `
		SELECT symptom, keywords
		FROM symptom_keywords
		ORDER BY symptom`
)

// PostgresSource reads the catalog from the conditions and symptom_keywords
// tables. It only ever reads.
type PostgresSource struct {
	DB            *sql.DB
	MaxConditions int
}

func (s PostgresSource) Load(ctx context.Context) (*KnowledgeBase, error) {
	limit := s.MaxConditions
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.DB.QueryContext(ctx, selectConditionsSQL, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("select conditions", err)
	}
	defer rows.Close()

	var conditions []Condition
	for rows.Next() {
		var (
			c                 Condition
			explanation, code sql.NullString
			durMin, durMax    sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.Name, pq.Array(&c.Symptoms), &explanation, &durMin, &durMax,
			&c.IsChronic, pq.Array(&c.Specialists), &code,
		); err != nil {
			return nil, apperrors.NewDatabaseError("scan condition", err)
		}
		c.Explanation = explanation.String
		c.Code = code.String
		c.DurationMin = int(durMin.Int64)
		c.DurationMax = int(durMax.Int64)
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate conditions", err)
	}

	keywords, err := s.loadKeywords(ctx)
	if err != nil {
		return nil, err
	}

	return New(conditions, keywords)
}

func (s PostgresSource) loadKeywords(ctx context.Context) (map[string][]string, error) {
	rows, err := s.DB.QueryContext(ctx, selectKeywordsSQL)
	if err != nil {
		return nil, apperrors.NewDatabaseError("select symptom keywords", err)
	}
	defer rows.Close()

	keywords := map[string][]string{}
	for rows.Next() {
		var (
			symptom string
			words   []string
		)
		if err := rows.Scan(&symptom, pq.Array(&words)); err != nil {
			return nil, apperrors.NewDatabaseError("scan symptom keywords", err)
		}
		keywords[symptom] = append(keywords[symptom], words...)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate symptom keywords", err)
	}
	return keywords, nil
}
