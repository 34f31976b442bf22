package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
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
	fit_score          REAL NOT NULL DEFAULT 0,
	custom_fields      TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_contact_email
	ON leads(customer_id, contact_email) WHERE contact_email IS NOT NULL AND contact_email != '';
CREATE INDEX IF NOT EXISTS idx_leads_customer ON leads(customer_id);
CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(generation_job_id);

CREATE TABLE IF NOT EXISTS approval_queue_items (
	id                TEXT PRIMARY KEY,
	customer_id       TEXT NOT NULL,
	agent_run_id      TEXT,
	entity_type       TEXT NOT NULL,
	entity_id         TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT,
	metadata          TEXT,
	estimated_credits INTEGER NOT NULL DEFAULT 0,
	batch_id          TEXT,
	fit_score_bucket  TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	expires_at        DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_approval_customer_status ON approval_queue_items(customer_id, status);
CREATE INDEX IF NOT EXISTS idx_approval_batch ON approval_queue_items(batch_id);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	data        TEXT,
	status      TEXT NOT NULL DEFAULT 'active',
	expires_at  DATETIME,
	resolved_at DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_active_key
	ON signals(customer_id, entity_type, entity_id, signal_type) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_signals_customer_status ON signals(customer_id, status);

CREATE TABLE IF NOT EXISTS recommendations (
	id                  TEXT PRIMARY KEY,
	customer_id         TEXT NOT NULL,
	user_id             TEXT,
	signal_id           TEXT,
	action_type         TEXT NOT NULL,
	priority            TEXT NOT NULL,
	score               REAL NOT NULL DEFAULT 0,
	title               TEXT NOT NULL,
	rationale           TEXT,
	cta_label           TEXT,
	cta_route           TEXT,
	cta_params          TEXT,
	secondary_cta_label TEXT,
	secondary_cta_route TEXT,
	card_type           TEXT NOT NULL,
	card_props          TEXT,
	data                TEXT,
	status              TEXT NOT NULL DEFAULT 'pending',
	snoozed_until       DATETIME,
	acted_at            DATETIME,
	dismissed_at        DATETIME,
	expires_at          DATETIME,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_recommendations_customer_status ON recommendations(customer_id, status);
CREATE INDEX IF NOT EXISTS idx_recommendations_signal ON recommendations(signal_id);

CREATE TABLE IF NOT EXISTS recommendation_feedback (
	id                TEXT PRIMARY KEY,
	recommendation_id TEXT NOT NULL REFERENCES recommendations(id),
	user_id           TEXT NOT NULL,
	action            TEXT NOT NULL,
	data              TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_events (
	id         TEXT PRIMARY KEY,
	event      TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'permanent',
	failed_at  DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMap(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}

func unmarshalStringMap(raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// --- Leads ---

func (s *SQLiteStore) BulkCreateLeads(ctx context.Context, customerID string, inputs []model.CreateLeadInput) (*model.BulkCreateResult, error) {
	result := &model.BulkCreateResult{}

	for i, in := range inputs {
		id := uuid.New().String()
		now := time.Now().UTC()

		customJSON, err := marshalJSON(in.CustomFields)
		if err != nil {
			result.Errors = append(result.Errors, model.RowError{Index: i, Error: "marshal custom fields: " + err.Error()})
			continue
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO leads (id, customer_id, company_name, domain, industry, employee_count,
				city, state, country, contact_first_name, contact_last_name, contact_email,
				contact_title, source, generation_job_id, source_url, fit_score, custom_fields, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, customerID, in.CompanyName, in.Domain, in.Industry, in.EmployeeCount,
			in.City, in.State, in.Country, in.ContactFirstName, in.ContactLastName, in.ContactEmail,
			in.ContactTitle, in.Source, in.GenerationJobID, in.SourceURL, in.FitScore, customJSON, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				result.Errors = append(result.Errors, model.RowError{Index: i, Error: fmt.Sprintf("duplicate contact email %q", in.ContactEmail)})
				continue
			}
			return nil, eris.Wrapf(err, "sqlite: insert lead %d", i)
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

func (s *SQLiteStore) CountRecentLeadsBySource(ctx context.Context, customerID string, since time.Time) ([]model.LeadGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COALESCE(generation_job_id, ''), COUNT(*)
		FROM leads
		WHERE customer_id = ? AND created_at >= ?
		GROUP BY source, generation_job_id
		ORDER BY COUNT(*) DESC`,
		customerID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count recent leads")
	}
	defer rows.Close()

	var groups []model.LeadGroup
	for rows.Next() {
		var g model.LeadGroup
		if err := rows.Scan(&g.Source, &g.GenerationJobID, &g.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead group")
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// --- Approval queue ---

func (s *SQLiteStore) CreateApprovalItem(ctx context.Context, input *model.CreateApprovalItemInput) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	metaJSON, err := marshalJSON(input.Metadata)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal approval metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_queue_items (id, customer_id, agent_run_id, entity_type, entity_id,
			title, description, metadata, estimated_credits, batch_id, fit_score_bucket, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		id, input.CustomerID, input.AgentRunID, input.EntityType, input.EntityID,
		input.Title, input.Description, metaJSON, input.EstimatedCredits, input.BatchID,
		string(input.FitScoreBucket), nullTime(input.ExpiresAt), now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert approval item")
	}
	return id, nil
}

func (s *SQLiteStore) ApprovalQueueSummary(ctx context.Context, customerID string) (*model.ApprovalSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fit_score_bucket, COUNT(*), COALESCE(SUM(estimated_credits), 0)
		FROM approval_queue_items
		WHERE customer_id = ? AND status = 'pending'
		GROUP BY fit_score_bucket`,
		customerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: approval summary")
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
			return nil, eris.Wrap(err, "sqlite: scan approval summary")
		}
		summary.Total += count
		summary.Pending += count
		summary.EstimatedCredits += credits
		if bucket != "" {
			summary.ByBucket[model.FitScoreBucket(bucket)] = count
		}
	}
	return summary, eris.Wrap(rows.Err(), "sqlite: approval summary rows")
}

// --- Signals ---

const signalColumns = `id, customer_id, entity_type, entity_id, signal_type, severity,
	title, description, data, status, expires_at, resolved_at, created_at`

func scanSignal(row interface{ Scan(...any) error }) (*model.Signal, error) {
	var sig model.Signal
	var description, data sql.NullString
	var expiresAt, resolvedAt sql.NullTime

	err := row.Scan(&sig.ID, &sig.CustomerID, &sig.EntityType, &sig.EntityID, &sig.Type,
		&sig.Severity, &sig.Title, &description, &data, &sig.Status, &expiresAt, &resolvedAt, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}

	sig.Description = description.String
	sig.Data = unmarshalMap(data)
	sig.ExpiresAt = timePtr(expiresAt)
	sig.ResolvedAt = timePtr(resolvedAt)
	return &sig, nil
}

func (s *SQLiteStore) InsertSignalIfAbsent(ctx context.Context, signal *model.Signal) (*model.Signal, bool, error) {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	if signal.Status == "" {
		signal.Status = model.SignalActive
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := marshalJSON(signal.Data)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal signal data")
	}

	// The partial unique index on the active key makes this race-free:
	// concurrent inserts collapse to one row without an existence check.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, customer_id, entity_type, entity_id, signal_type, severity,
			title, description, data, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id, entity_type, entity_id, signal_type) WHERE status = 'active'
		DO NOTHING`,
		signal.ID, signal.CustomerID, signal.EntityType, signal.EntityID, string(signal.Type),
		string(signal.Severity), signal.Title, signal.Description, dataJSON, string(signal.Status),
		nullTime(signal.ExpiresAt), signal.CreatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert signal")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: signal rows affected")
	}
	if affected > 0 {
		return signal, true, nil
	}

	// Conflict: return the existing active signal.
	existing, err := scanSignal(s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = ? AND entity_type = ? AND entity_id = ? AND signal_type = ? AND status = 'active'
		LIMIT 1`,
		signal.CustomerID, signal.EntityType, signal.EntityID, string(signal.Type),
	))
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: select existing signal")
	}
	return existing, false, nil
}

func (s *SQLiteStore) ResolveSignalByEntity(ctx context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error) {
	now := time.Now().UTC()

	existing, err := scanSignal(s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = ? AND entity_type = ? AND entity_id = ? AND signal_type = ? AND status = 'active'
		LIMIT 1`,
		customerID, entityType, entityID, string(signalType),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find signal to resolve")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE signals SET status = ?, resolved_at = ? WHERE id = ? AND status = 'active'`,
		string(status), now, existing.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: resolve signal")
	}

	existing.Status = status
	existing.ResolvedAt = &now
	return existing, nil
}

func (s *SQLiteStore) ListActiveSignals(ctx context.Context, customerID string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = ? AND status = 'active'
		ORDER BY CASE severity WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC
		LIMIT ?`,
		customerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active signals")
	}
	defer rows.Close()
	return collectSignals(rows)
}

func (s *SQLiteStore) ListEntitySignals(ctx context.Context, customerID, entityType, entityID string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		WHERE customer_id = ? AND entity_type = ? AND entity_id = ? AND status = 'active'
		ORDER BY CASE severity WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at DESC
		LIMIT ?`,
		customerID, entityType, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entity signals")
	}
	defer rows.Close()
	return collectSignals(rows)
}

func collectSignals(rows *sql.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: signal rows")
}

// --- Recommendations ---

const recommendationColumns = `id, customer_id, user_id, signal_id, action_type, priority, score,
	title, rationale, cta_label, cta_route, cta_params, secondary_cta_label, secondary_cta_route,
	card_type, card_props, data, status, snoozed_until, acted_at, dismissed_at, expires_at, created_at`

func scanRecommendation(row interface{ Scan(...any) error }) (*model.Recommendation, error) {
	var rec model.Recommendation
	var userID, signalID, rationale, ctaLabel, ctaRoute, ctaParams sql.NullString
	var secondaryLabel, secondaryRoute, cardProps, data sql.NullString
	var snoozedUntil, actedAt, dismissedAt, expiresAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.CustomerID, &userID, &signalID, &rec.ActionType, &rec.Priority,
		&rec.Score, &rec.Title, &rationale, &ctaLabel, &ctaRoute, &ctaParams,
		&secondaryLabel, &secondaryRoute, &rec.CardType, &cardProps, &data, &rec.Status,
		&snoozedUntil, &actedAt, &dismissedAt, &expiresAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.UserID = userID.String
	rec.SignalID = signalID.String
	rec.Rationale = rationale.String
	rec.CTALabel = ctaLabel.String
	rec.CTARoute = ctaRoute.String
	rec.CTAParams = unmarshalStringMap(ctaParams)
	rec.SecondaryCTALabel = secondaryLabel.String
	rec.SecondaryCTARoute = secondaryRoute.String
	rec.CardProps = unmarshalMap(cardProps)
	rec.Data = unmarshalMap(data)
	rec.SnoozedUntil = timePtr(snoozedUntil)
	rec.ActedAt = timePtr(actedAt)
	rec.DismissedAt = timePtr(dismissedAt)
	rec.ExpiresAt = timePtr(expiresAt)
	return &rec, nil
}

func (s *SQLiteStore) InsertRecommendation(ctx context.Context, rec *model.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RecommendationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ctaParams, err := marshalJSON(rec.CTAParams)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cta params")
	}
	cardProps, err := marshalJSON(rec.CardProps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal card props")
	}
	data, err := marshalJSON(rec.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recommendation data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, customer_id, user_id, signal_id, action_type, priority, score,
			title, rationale, cta_label, cta_route, cta_params, secondary_cta_label, secondary_cta_route,
			card_type, card_props, data, status, snoozed_until, acted_at, dismissed_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CustomerID, rec.UserID, rec.SignalID, string(rec.ActionType), string(rec.Priority),
		rec.Score, rec.Title, rec.Rationale, rec.CTALabel, rec.CTARoute, ctaParams,
		rec.SecondaryCTALabel, rec.SecondaryCTARoute, string(rec.CardType), cardProps, data,
		string(rec.Status), nullTime(rec.SnoozedUntil), nullTime(rec.ActedAt), nullTime(rec.DismissedAt),
		nullTime(rec.ExpiresAt), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert recommendation")
}

func (s *SQLiteStore) GetRecommendation(ctx context.Context, customerID, id string) (*model.Recommendation, error) {
	rec, err := scanRecommendation(s.db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ? AND customer_id = ?`,
		id, customerID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get recommendation")
	}
	return rec, nil
}

func (s *SQLiteStore) HasPendingRecommendationForSignal(ctx context.Context, customerID, signalID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE customer_id = ? AND signal_id = ? AND status = 'pending'`,
		customerID, signalID,
	).Scan(&count)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: pending recommendation check")
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, customerID string, filter RecommendationFilter) (*model.Page[model.Recommendation], error) {
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

	where := []string{"customer_id = ?", "status = ?"}
	args := []any{customerID, string(status)}

	if filter.UserID != "" {
		// Tenant-wide recommendations (no user) are visible to everyone.
		where = append(where, "(user_id = ? OR user_id IS NULL OR user_id = '')")
		args = append(args, filter.UserID)
	}
	if len(filter.Priority) > 0 {
		where = append(where, "priority IN ("+placeholders(len(filter.Priority))+")")
		for _, p := range filter.Priority {
			args = append(args, string(p))
		}
	}
	if len(filter.ActionType) > 0 {
		where = append(where, "action_type IN ("+placeholders(len(filter.ActionType))+")")
		for _, a := range filter.ActionType {
			args = append(args, string(a))
		}
	}
	if !filter.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, time.Now().UTC())
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE `+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count recommendations")
	}

	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE ` + whereClause + `
		ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, score DESC, created_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close()

	recs, err := collectRecommendations(rows)
	if err != nil {
		return nil, err
	}
	return model.NewPage(recs, page, limit, total), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func collectRecommendations(rows *sql.Rows) ([]model.Recommendation, error) {
	var out []model.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: recommendation rows")
}

func (s *SQLiteStore) UpdateRecommendationStatus(ctx context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error) {
	now := time.Now().UTC()

	set := "status = ?"
	args := []any{string(status)}
	switch status {
	case model.RecommendationActed:
		set += ", acted_at = ?"
		args = append(args, now)
	case model.RecommendationDismissed:
		set += ", dismissed_at = ?"
		args = append(args, now)
	case model.RecommendationSnoozed:
		set += ", snoozed_until = ?"
		args = append(args, nullTime(snoozedUntil))
	}
	args = append(args, id, customerID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET `+set+` WHERE id = ? AND customer_id = ?`, args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update recommendation status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recommendation rows affected")
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetRecommendation(ctx, customerID, id)
}

func (s *SQLiteStore) InsertRecommendationFeedback(ctx context.Context, fb *model.RecommendationFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := marshalJSON(fb.Data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feedback data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendation_feedback (id, recommendation_id, user_id, action, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.RecommendationID, fb.UserID, string(fb.Action), dataJSON, fb.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert feedback")
}

func (s *SQLiteStore) ListRecommendationsBySignals(ctx context.Context, customerID string, signalIDs []string, limit int) ([]model.Recommendation, error) {
	if len(signalIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	args := []any{customerID}
	for _, id := range signalIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations
		WHERE customer_id = ? AND status = 'pending' AND signal_id IN (`+placeholders(len(signalIDs))+`)
		ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, score DESC
		LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations by signals")
	}
	defer rows.Close()
	return collectRecommendations(rows)
}

func (s *SQLiteStore) ListRecommendationsByEntityRef(ctx context.Context, customerID, entityID string, limit int) ([]model.Recommendation, error) {
	if limit <= 0 {
		limit = 5
	}

	// Matches entity ids embedded in the opaque data/card_props payloads.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations
		WHERE customer_id = ? AND status = 'pending' AND (
			json_extract(data, '$.opportunityId') = ? OR
			json_extract(data, '$.accountId') = ? OR
			json_extract(data, '$.contactId') = ? OR
			json_extract(card_props, '$.opportunityId') = ? OR
			json_extract(card_props, '$.accountId') = ? OR
			json_extract(card_props, '$.contactId') = ?
		)
		LIMIT ?`,
		customerID, entityID, entityID, entityID, entityID, entityID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations by entity ref")
	}
	defer rows.Close()
	return collectRecommendations(rows)
}

// --- Dead events ---

func (s *SQLiteStore) RecordDeadEvent(ctx context.Context, entry *events.DeadEvent) error {
	eventJSON, err := json.Marshal(entry.Event)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dead event")
	}
	errorType := entry.ErrorType
	if errorType == "" {
		errorType = "permanent"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_events (id, event, error, error_type, failed_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, string(eventJSON), entry.Error, errorType, entry.FailedAt,
	)
	return eris.Wrap(err, "sqlite: insert dead event")
}

func (s *SQLiteStore) ListDeadEvents(ctx context.Context, limit int) ([]events.DeadEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, error, error_type, failed_at FROM dead_events ORDER BY failed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dead events")
	}
	defer rows.Close()

	var out []events.DeadEvent
	for rows.Next() {
		var entry events.DeadEvent
		var eventJSON string
		if err := rows.Scan(&entry.ID, &eventJSON, &entry.Error, &entry.ErrorType, &entry.FailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dead event")
		}
		if err := json.Unmarshal([]byte(eventJSON), &entry.Event); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal dead event")
		}
		out = append(out, entry)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dead event rows")
}
