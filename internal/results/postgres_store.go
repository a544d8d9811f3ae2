package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// PostgresConfig configures the durable result store.
type PostgresConfig struct {
	DSN   string
	Table string
}

// PostgresStore persists records in postgres. The conditional put is an
// insert with ON CONFLICT DO NOTHING on the primary key.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore connects to postgres and verifies the connection.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	if cfg.Table == "" {
		cfg.Table = "risk_scores"
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresStore{db: db, table: cfg.Table}, nil
}

// EnsureSchema creates the result table and retention index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    tenant_event_id  TEXT PRIMARY KEY,
    ts_ingested      TIMESTAMPTZ NOT NULL,
    rule_score       INTEGER NOT NULL,
    model_score      DOUBLE PRECISION,
    model_confidence DOUBLE PRECISION NOT NULL,
    risk_final       DOUBLE PRECISION NOT NULL,
    severity_tier    TEXT NOT NULL,
    matched_rules    JSONB,
    model_version    TEXT,
    ruleset_version  TEXT,
    degraded         JSONB,
    expires_at       TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create result table: %w", err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expires_at_idx ON %s (expires_at)`, s.table, s.table)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create retention index: %w", err)
	}
	return nil
}

// Put inserts the record unless a live record already holds the key.
func (s *PostgresStore) Put(ctx context.Context, score *models.RiskScore) (PutOutcome, *models.RiskScore, error) {
	matched, err := json.Marshal(score.MatchedRules)
	if err != nil {
		return Conflict, nil, fmt.Errorf("encode matched rules: %w", err)
	}
	degraded, err := json.Marshal(score.Degraded)
	if err != nil {
		return Conflict, nil, fmt.Errorf("encode degraded list: %w", err)
	}

	var modelScore sql.NullFloat64
	if score.ModelScore != nil {
		modelScore = sql.NullFloat64{Float64: *score.ModelScore, Valid: true}
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
    tenant_event_id, ts_ingested, rule_score, model_score, model_confidence,
    risk_final, severity_tier, matched_rules, model_version, ruleset_version,
    degraded, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (tenant_event_id) DO NOTHING`, s.table)

	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.db.ExecContext(ctx, insert,
			score.TenantEventID, score.TSIngested, score.RuleScore, modelScore,
			score.ModelConfidence, score.RiskFinal, string(score.SeverityTier),
			matched, score.ModelVersion, score.RulesetVersion, degraded, score.ExpiresAt,
		)
		if err != nil {
			return Conflict, nil, fmt.Errorf("insert risk score: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return Conflict, nil, fmt.Errorf("insert risk score: %w", err)
		}
		if rows == 1 {
			return Stored, nil, nil
		}

		existing, found, err := s.Get(ctx, score.TenantEventID)
		if err != nil {
			return Conflict, nil, err
		}
		if !found {
			// The conflicting row is past retention. Clear it and retry.
			purge := fmt.Sprintf(`DELETE FROM %s WHERE tenant_event_id = $1 AND expires_at <= NOW()`, s.table)
			if _, err := s.db.ExecContext(ctx, purge, score.TenantEventID); err != nil {
				return Conflict, nil, fmt.Errorf("purge expired risk score: %w", err)
			}
			continue
		}
		if existing.Same(score) {
			return Identical, existing, nil
		}
		return Conflict, existing, nil
	}
	return Conflict, nil, fmt.Errorf("postgres put raced expiry for %s", score.TenantEventID)
}

// Get returns the live record for the key.
func (s *PostgresStore) Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error) {
	query := fmt.Sprintf(`
SELECT tenant_event_id, ts_ingested, rule_score, model_score, model_confidence,
       risk_final, severity_tier, matched_rules, model_version, ruleset_version,
       degraded, expires_at
FROM %s
WHERE tenant_event_id = $1 AND expires_at > NOW()`, s.table)

	var (
		score      models.RiskScore
		modelScore sql.NullFloat64
		tier       string
		matched    []byte
		degraded   []byte
	)
	err := s.db.QueryRowContext(ctx, query, tenantEventID).Scan(
		&score.TenantEventID, &score.TSIngested, &score.RuleScore, &modelScore,
		&score.ModelConfidence, &score.RiskFinal, &tier, &matched,
		&score.ModelVersion, &score.RulesetVersion, &degraded, &score.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select risk score: %w", err)
	}

	if modelScore.Valid {
		score.ModelScore = &modelScore.Float64
	}
	score.SeverityTier = models.SeverityTier(tier)
	if len(matched) > 0 {
		if err := json.Unmarshal(matched, &score.MatchedRules); err != nil {
			return nil, false, fmt.Errorf("decode matched rules: %w", err)
		}
	}
	if len(degraded) > 0 {
		if err := json.Unmarshal(degraded, &score.Degraded); err != nil {
			return nil, false, fmt.Errorf("decode degraded list: %w", err)
		}
	}
	return &score, true, nil
}

// Close releases the database pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
