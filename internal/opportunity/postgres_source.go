package opportunity

import (
	"context"
	"database/sql"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
)

// Criteria lists are stored as comma-separated text.
const candidatesQuery = `
SELECT o.id, o.provider_user_id, o.title, o.description, o.type,
       c.id, c.gpa_min, c.skills, c.deadline, c.required_documents
FROM opportunity o
LEFT JOIN criteria c ON c.opportunity_id = o.id
ORDER BY o.id
LIMIT $1`

type PostgresSource struct {
	db     *sql.DB
	limit  int
	logger logger.Logger
}

func NewPostgresSource(db *sql.DB, limit int, log logger.Logger) *PostgresSource {
	return &PostgresSource{
		db:     db,
		limit:  limit,
		logger: log.WithFields(map[string]interface{}{"component": "opportunity", "source": "postgres"}),
	}
}

func (s *PostgresSource) Candidates(ctx context.Context) ([]matching.OpportunityCandidate, error) {
	limit := s.limit
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, candidatesQuery, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("opportunities", err)
	}
	defer rows.Close()

	candidates := []matching.OpportunityCandidate{}
	seen := make(map[int64]bool)
	for rows.Next() {
		var (
			c           matching.OpportunityCandidate
			provider    sql.NullInt64
			description sql.NullString
			criteriaID  sql.NullInt64
			gpaMin      sql.NullFloat64
			skills      sql.NullString
			deadline    sql.NullTime
			documents   sql.NullString
		)
		if err := rows.Scan(
			&c.ID, &provider, &c.Title, &description, &c.Type,
			&criteriaID, &gpaMin, &skills, &deadline, &documents,
		); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("opportunities", err)
		}
		// A second criteria row for the same opportunity is ignored.
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		c.ProviderUserID = provider.Int64
		c.Description = description.String
		if criteriaID.Valid {
			cr := &matching.Criteria{
				Skills:            matching.SplitList(skills.String),
				RequiredDocuments: matching.SplitList(documents.String),
			}
			if gpaMin.Valid {
				v := gpaMin.Float64
				cr.GPAMin = &v
			}
			if deadline.Valid {
				t := deadline.Time.UTC()
				cr.Deadline = &t
			}
			c.Criteria = cr
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("opportunities", err)
	}

	s.logger.Debug("loaded candidates", map[string]interface{}{"count": len(candidates)})
	return candidates, nil
}
