package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

// SaveRuleConfig inserts or replaces a screening rule.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if err := requireID("rule id", rule.ID); err != nil {
		return err
	}

	bands, _ := json.Marshal(rule.Bands)
	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Version,
		rule.Expression, string(bands), boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetRuleConfig retrieves a screening rule, enabled or not.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	if err := requireID("rule id", ruleID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE id = ?
	`

	cfg, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListRuleConfigs returns every stored rule ordered by ID.
// Callers decide what to do with disabled rules.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []*domain.RuleConfig{}
	for rows.Next() {
		cfg, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

func scanRule(row rowScanner) (*domain.RuleConfig, error) {
	var cfg domain.RuleConfig
	var description sql.NullString
	var bands string
	var enabled int

	if err := row.Scan(
		&cfg.ID, &cfg.Name, &description,
		&cfg.Version, &cfg.Expression, &bands, &enabled,
	); err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}
