package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it, which is how the Postgres store is tested.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_signal": `INSERT INTO signals (id, customer_id, entity_type, entity_id, signal_type, severity,
		title, description, data, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (customer_id, entity_type, entity_id, signal_type) WHERE status = 'active'
		DO NOTHING`,
	"select_active_signal": `SELECT ` + signalColumns + ` FROM signals
		WHERE customer_id = $1 AND entity_type = $2 AND entity_id = $3 AND signal_type = $4 AND status = 'active'
		LIMIT 1`,
	"pending_rec_for_signal": `SELECT COUNT(*) FROM recommendations
		WHERE customer_id = $1 AND signal_id = $2 AND status = 'pending'`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id        TEXT NOT NULL,
	company_name       TEXT NOT NULL,
	domain             TEXT,
	industry           TEXT,
	employee_count     INTEGER,
	city               TEXT,
	state              TEXT,
	country            TEXT,
	contact_first_name TEXT,
	contact_last_name  TEXT,
	contact_email      TEXT,
	contact_title      TEXT,
	source             TEXT NOT NULL,
	generation_job_id  TEXT,
	source_url         TEXT,
	fit_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	custom_fields      JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_contact_email
	ON leads(customer_id, contact_email) WHERE contact_email IS NOT NULL AND contact_email != '';
CREATE INDEX IF NOT EXISTS idx_leads_customer ON leads(customer_id);
CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(generation_job_id);

CREATE TABLE IF NOT EXISTS approval_queue_items (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id       TEXT NOT NULL,
	agent_run_id      TEXT,
	entity_type       TEXT NOT NULL,
	entity_id         TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT,
	metadata          JSONB,
	estimated_credits INTEGER NOT NULL DEFAULT 0,
	batch_id          TEXT,
	fit_score_bucket  TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	expires_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_approval_customer_status ON approval_queue_items(customer_id, status);
CREATE INDEX IF NOT EXISTS idx_approval_batch ON approval_queue_items(batch_id);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	data        JSONB,
	status      TEXT NOT NULL DEFAULT 'active',
	expires_at  TIMESTAMPTZ,
	resolved_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_active_key
	ON signals(customer_id, entity_type, entity_id, signal_type) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_signals_customer_status ON signals(customer_id, status);

CREATE TABLE IF NOT EXISTS recommendations (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id         TEXT NOT NULL,
	user_id             TEXT,
	signal_id           TEXT,
	action_type         TEXT NOT NULL,
	priority            TEXT NOT NULL,
	score               DOUBLE PRECISION NOT NULL DEFAULT 0,
	title               TEXT NOT NULL,
	rationale           TEXT,
	cta_label           TEXT,
	cta_route           TEXT,
	cta_params          JSONB,
	secondary_cta_label TEXT,
	secondary_cta_route TEXT,
	card_type           TEXT NOT NULL,
	card_props          JSONB,
	data                JSONB,
	status              TEXT NOT NULL DEFAULT 'pending',
	snoozed_until       TIMESTAMPTZ,
	acted_at            TIMESTAMPTZ,
	dismissed_at        TIMESTAMPTZ,
	expires_at          TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recommendations_customer_status ON recommendations(customer_id, status);
CREATE INDEX IF NOT EXISTS idx_recommendations_signal ON recommendations(signal_id);

CREATE TABLE IF NOT EXISTS recommendation_feedback (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	recommendation_id TEXT NOT NULL REFERENCES recommendations(id),
	user_id           TEXT NOT NULL,
	action            TEXT NOT NULL,
	data              JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dead_events (
	id         TEXT PRIMARY KEY,
	event      JSONB NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'permanent',
	failed_at  TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Leads ---

func (s *PostgresStore) BulkCreateLeads(ctx context.Context, customerID string, inputs []model.CreateLeadInput) (*model.BulkCreateResult, error) {
	result := &model.BulkCreateResult{}

	for i, in := range inputs {
		id := uuid.New().String()
		now := time.Now().UTC()

		var customJSON []byte
		if in.CustomFields != nil {
			b, err := json.Marshal(in.CustomFields)
			if err != nil {
				result.Errors = append(result.Errors, model.RowError{Index: i, Error: "marshal custom fields: " + err.Error()})
				continue
			}
			customJSON = b
		}

		_, err := s.pool.Exec(ctx,
			`INSERT INTO leads (id, customer_id, company_name, domain, industry, employee_count,
				city, state, country, contact_first_name, contact_last_name, contact_email,
				contact_title, source, generation_job_id, source_url, fit_score, custom_fields, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			id, customerID, in.CompanyName, in.Domain, in.Industry, in.EmployeeCount,
			in.City, in.State, in.Country, in.ContactFirstName, in.ContactLastName, in.ContactEmail,
			in.ContactTitle, in.Source, in.GenerationJobID, in.SourceURL, in.FitScore, customJSON, now,
		)
		if err != nil {
			if isPgUniqueViolation(err) {
				result.Errors = append(result.Errors, model.RowError{Index: i, Error: fmt.Sprintf("duplicate contact email %q", in.ContactEmail)})
				continue
			}
			return nil, eris.Wrapf(err, "postgres: insert lead %d", i)
		}

		result.Created = append(result.Created, model.Lead{
			ID:               id,
			CustomerID:       customerID,
			CompanyName:      in.CompanyName,
			Domain:           in.Domain,
			Industry:         in.Industry,
			EmployeeCount:    in.EmployeeCount,
			City:             in.City,
			State:            in.State,
			Country:          in.Country,
			ContactFirstName: in.ContactFirstName,
			ContactLastName:  in.ContactLastName,
			ContactEmail:     in.ContactEmail,
			ContactTitle:     in.ContactTitle,
			Source:           in.Source,
			GenerationJobID:  in.GenerationJobID,
			SourceURL:        in.SourceURL,
			FitScore:         in.FitScore,
			CustomFields:     in.CustomFields,
			CreatedAt:        now,
		})
	}

	return result, nil
}

func (s *PostgresStore) CountRecentLeadsBySource(ctx context.Context, customerID string, since time.Time) ([]model.LeadGroup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, COALESCE(generation_job_id, ''), COUNT(*)
		FROM leads
		WHERE customer_id = $1 AND created_at >= $2
		GROUP BY source, generation_job_id
		ORDER BY COUNT(*) DESC`,
		customerID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count recent leads")
	}
	defer rows.Close()

	var groups []model.LeadGroup
	for rows.Next() {
		var g model.LeadGroup
		if err := rows.Scan(&g.Source, &g.GenerationJobID, &g.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead group")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// --- Approval queue ---

func (s *PostgresStore) CreateApprovalItem(ctx context.Context, input *model.CreateApprovalItemInput) (string, error) {
	id := uuid.New().String()

	var metaJSON []byte
	if input.Metadata != nil {
		b, err := json.Marshal(input.Metadata)
		if err != nil {
			return "", eris.Wrap(err, "postgres: marshal approval metadata")
		}
		metaJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO approval_queue_items (id, customer_id, agent_run_id, entity_type, entity_id,
			title, description, metadata, estimated_credits, batch_id, fit_score_bucket, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', $12, now())`,
		id, input.CustomerID, input.AgentRunID, input.EntityType, input.EntityID,
		input.Title, input.Description, metaJSON, input.EstimatedCredits, input.BatchID,
		string(input.FitScoreBucket), input.ExpiresAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert approval item")
	}
	return id, nil
}

func (s *PostgresStore) ApprovalQueueSummary(ctx context.Context, customerID string) (*model.ApprovalSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fit_score_bucket, COUNT(*), COALESCE(SUM(estimated_credits), 0)
		FROM approval_queue_items
		WHERE customer_id = $1 AND status = 'pending'
		GROUP BY fit_score_bucket`,
		customerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: approval summary")
	}
	defer rows.Close()

	summary := &model.ApprovalSummary{ByBucket: map[model.FitScoreBucket]int{
		model.BucketHigh:   0,
		model.BucketMedium: 0,
		model.BucketLow:    0,
	}}
	for rows.Next() {
		var bucket string
		var count, credits int
		if err := rows.Scan(&bucket, &count, &credits); err != nil {
			return nil, eris.Wrap(err, "postgres: scan approval summary")
		}
		summary.Total += count
		summary.Pending += count
		summary.EstimatedCredits += credits
		if bucket != "" {
			summary.ByBucket[model.FitScoreBucket(bucket)] = count
		}
	}
	return summary, eris.Wrap(rows.Err(), "postgres: approval summary rows")
}

// --- Signals ---

func scanPgSignal(row pgx.Row) (*model.Signal, error) {
	var sig model.Signal
	var description *string
	var data []byte

	err := row.Scan(&sig.ID, &sig.CustomerID, &sig.EntityType, &sig.EntityID, &sig.Type,
		&sig.Severity, &sig.Title, &description, &data, &sig.Status, &sig.ExpiresAt, &sig.ResolvedAt, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}

	if description != nil {
		sig.Description = *description
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &sig.Data)
	}
	return &sig, nil
}

func (s *PostgresStore) InsertSignalIfAbsent(ctx context.Context, signal *model.Signal) (*model.Signal, bool, error) {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	if signal.Status == "" {
		signal.Status = model.SignalActive
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}

	var dataJSON []byte
	if signal.Data != nil {
		b, err := json.Marshal(signal.Data)
		if err != nil {
			return nil, false, eris.Wrap(err, "postgres: marshal signal data")
		}
		dataJSON = b
	}

	tag, err := s.pool.Exec(ctx, "insert_signal",
		signal.ID, signal.CustomerID, signal.EntityType, signal.EntityID, string(signal.Type),
		string(signal.Severity), signal.Title, signal.Description, dataJSON, string(signal.Status),
		signal.ExpiresAt, signal.CreatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: insert signal")
	}
	if tag.RowsAffected() > 0 {
		return signal, true, nil
	}

	existing, err := scanPgSignal(s.pool.QueryRow(ctx, "select_active_signal",
		signal.CustomerID, signal.EntityType, signal.EntityID, string(signal.Type),
	))
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: select existing signal")
	}
	return existing, false, nil
}

func (s *PostgresStore) ResolveSignalByEntity(ctx context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error) {
	now := time.Now().UTC()

	existing, err := scanPgSignal(s.pool.QueryRow(ctx, "select_active_signal",
		customerID, entityType, entityID, string(signalType),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find signal to resolve")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE signals SET status = $1, resolved_at = $2 WHERE id = $3 AND status = 'active'`,
		string(status), now, existing.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: resolve signal")
	}

	existing.Status = status
	existing.ResolvedAt = &now
	return existing, nil
}

func (s *PostgresStore) ListActiveSignals(ctx context.Context, customerID string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = $1 AND status = 'active'
		ORDER BY CASE severity WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC
		LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active signals")
	}
	defer rows.Close()
	return collectPgSignals(rows)
}

func (s *PostgresStore) ListEntitySignals(ctx context.Context, customerID, entityType, entityID string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = $1 AND entity_type = $2 AND entity_id = $3 AND status = 'active'
		ORDER BY CASE severity WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC
		LIMIT $4`,
		customerID, entityType, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entity signals")
	}
	defer rows.Close()
	return collectPgSignals(rows)
}

func collectPgSignals(rows pgx.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		sig, err := scanPgSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: signal rows")
}

// --- Recommendations ---

func scanPgRecommendation(row pgx.Row) (*model.Recommendation, error) {
	var rec model.Recommendation
	var userID, signalID, rationale, ctaLabel, ctaRoute *string
	var secondaryLabel, secondaryRoute *string
	var ctaParams, cardProps, data []byte

	err := row.Scan(&rec.ID, &rec.CustomerID, &userID, &signalID, &rec.ActionType, &rec.Priority,
		&rec.Score, &rec.Title, &rationale, &ctaLabel, &ctaRoute, &ctaParams,
		&secondaryLabel, &secondaryRoute, &rec.CardType, &cardProps, &data, &rec.Status,
		&rec.SnoozedUntil, &rec.ActedAt, &rec.DismissedAt, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	rec.UserID = deref(userID)
	rec.SignalID = deref(signalID)
	rec.Rationale = deref(rationale)
	rec.CTALabel = deref(ctaLabel)
	rec.CTARoute = deref(ctaRoute)
	rec.SecondaryCTALabel = deref(secondaryLabel)
	rec.SecondaryCTARoute = deref(secondaryRoute)
	if len(ctaParams) > 0 {
		_ = json.Unmarshal(ctaParams, &rec.CTAParams)
	}
	if len(cardProps) > 0 {
		_ = json.Unmarshal(cardProps, &rec.CardProps)
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Data)
	}
	return &rec, nil
}

func (s *PostgresStore) InsertRecommendation(ctx context.Context, rec *model.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RecommendationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	marshal := func(v any) ([]byte, error) {
		if v == nil {
			return nil, nil
		}
		return json.Marshal(v)
	}
	ctaParams, err := marshal(rec.CTAParams)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cta params")
	}
	cardProps, err := marshal(rec.CardProps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal card props")
	}
	data, err := marshal(rec.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recommendation data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO recommendations (id, customer_id, user_id, signal_id, action_type, priority, score,
			title, rationale, cta_label, cta_route, cta_params, secondary_cta_label, secondary_cta_route,
			card_type, card_props, data, status, snoozed_until, acted_at, dismissed_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		rec.ID, rec.CustomerID, rec.UserID, rec.SignalID, string(rec.ActionType), string(rec.Priority),
		rec.Score, rec.Title, rec.Rationale, rec.CTALabel, rec.CTARoute, ctaParams,
		rec.SecondaryCTALabel, rec.SecondaryCTARoute, string(rec.CardType), cardProps, data,
		string(rec.Status), rec.SnoozedUntil, rec.ActedAt, rec.DismissedAt, rec.ExpiresAt, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert recommendation")
}

func (s *PostgresStore) GetRecommendation(ctx context.Context, customerID, id string) (*model.Recommendation, error) {
	rec, err := scanPgRecommendation(s.pool.QueryRow(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1 AND customer_id = $2`,
		id, customerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get recommendation")
	}
	return rec, nil
}

func (s *PostgresStore) HasPendingRecommendationForSignal(ctx context.Context, customerID, signalID string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, "pending_rec_for_signal", customerID, signalID).Scan(&count)
	if err != nil {
		return false, eris.Wrap(err, "postgres: pending recommendation check")
	}
	return count > 0, nil
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, customerID string, filter RecommendationFilter) (*model.Page[model.Recommendation], error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	status := filter.Status
	if status == "" {
		status = model.RecommendationPending
	}

	where := []string{"customer_id = $1", "status = $2"}
	args := []any{customerID, string(status)}
	n := 2

	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}

	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("(user_id = %s OR user_id IS NULL OR user_id = '')", next()))
		args = append(args, filter.UserID)
	}
	if len(filter.Priority) > 0 {
		ph := make([]string, len(filter.Priority))
		for i, p := range filter.Priority {
			ph[i] = next()
			args = append(args, string(p))
		}
		where = append(where, "priority IN ("+strings.Join(ph, ", ")+")")
	}
	if len(filter.ActionType) > 0 {
		ph := make([]string, len(filter.ActionType))
		for i, a := range filter.ActionType {
			ph[i] = next()
			args = append(args, string(a))
		}
		where = append(where, "action_type IN ("+strings.Join(ph, ", ")+")")
	}
	if !filter.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at > now())")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE `+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count recommendations")
	}

	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE ` + whereClause + `
		ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, score DESC, created_at DESC
		LIMIT ` + next() + ` OFFSET ` + next()
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	recs, err := collectPgRecommendations(rows)
	if err != nil {
		return nil, err
	}
	return model.NewPage(recs, page, limit, total), nil
}

func collectPgRecommendations(rows pgx.Rows) ([]model.Recommendation, error) {
	var out []model.Recommendation
	for rows.Next() {
		rec, err := scanPgRecommendation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: recommendation rows")
}

func (s *PostgresStore) UpdateRecommendationStatus(ctx context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error) {
	now := time.Now().UTC()

	set := "status = $1"
	args := []any{string(status)}
	switch status {
	case model.RecommendationActed:
		set += ", acted_at = $2"
		args = append(args, now)
	case model.RecommendationDismissed:
		set += ", dismissed_at = $2"
		args = append(args, now)
	case model.RecommendationSnoozed:
		set += ", snoozed_until = $2"
		args = append(args, snoozedUntil)
	}
	args = append(args, id, customerID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE recommendations SET %s WHERE id = $%d AND customer_id = $%d`, set, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update recommendation status")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return s.GetRecommendation(ctx, customerID, id)
}

func (s *PostgresStore) InsertRecommendationFeedback(ctx context.Context, fb *model.RecommendationFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	var dataJSON []byte
	if fb.Data != nil {
		b, err := json.Marshal(fb.Data)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal feedback data")
		}
		dataJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendation_feedback (id, recommendation_id, user_id, action, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.RecommendationID, fb.UserID, string(fb.Action), dataJSON, fb.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert feedback")
}

func (s *PostgresStore) ListRecommendationsBySignals(ctx context.Context, customerID string, signalIDs []string, limit int) ([]model.Recommendation, error) {
	if len(signalIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations
		WHERE customer_id = $1 AND status = 'pending' AND signal_id = ANY($2)
		ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, score DESC
		LIMIT $3`,
		customerID, signalIDs, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations by signals")
	}
	defer rows.Close()
	return collectPgRecommendations(rows)
}

func (s *PostgresStore) ListRecommendationsByEntityRef(ctx context.Context, customerID, entityID string, limit int) ([]model.Recommendation, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations
		WHERE customer_id = $1 AND status = 'pending' AND (
			data->>'opportunityId' = $2 OR data->>'accountId' = $2 OR data->>'contactId' = $2 OR
			card_props->>'opportunityId' = $2 OR card_props->>'accountId' = $2 OR card_props->>'contactId' = $2
		)
		LIMIT $3`,
		customerID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations by entity ref")
	}
	defer rows.Close()
	return collectPgRecommendations(rows)
}

// --- Dead events ---

func (s *PostgresStore) RecordDeadEvent(ctx context.Context, entry *events.DeadEvent) error {
	eventJSON, err := json.Marshal(entry.Event)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dead event")
	}
	errorType := entry.ErrorType
	if errorType == "" {
		errorType = "permanent"
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_events (id, event, error, error_type, failed_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, eventJSON, entry.Error, errorType, entry.FailedAt,
	)
	return eris.Wrap(err, "postgres: insert dead event")
}

func (s *PostgresStore) ListDeadEvents(ctx context.Context, limit int) ([]events.DeadEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event, error, error_type, failed_at FROM dead_events ORDER BY failed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dead events")
	}
	defer rows.Close()

	var out []events.DeadEvent
	for rows.Next() {
		var entry events.DeadEvent
		var eventJSON []byte
		if err := rows.Scan(&entry.ID, &eventJSON, &entry.Error, &entry.ErrorType, &entry.FailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dead event")
		}
		if err := json.Unmarshal(eventJSON, &entry.Event); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dead event")
		}
		out = append(out, entry)
	}
	return out, eris.Wrap(rows.Err(), "postgres: dead event rows")
}
