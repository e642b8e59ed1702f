package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ParamStore = (*ParamRepo)(nil)

// ParamRepo is the SQLite implementation of the ParamStore port interface.
// Parameter values are stored as JSON so a single entry can hold a string
// list (the usual case) or any other shape an operator configures.
type ParamRepo struct {
	db *DB
}

// NewParamRepo creates a new ParamRepo backed by the given DB.
func NewParamRepo(db *DB) *ParamRepo {
	return &ParamRepo{db: db}
}

// GetCustomParameter returns the parameter map for the configuration key. A
// missing configuration returns an empty map, not an error.
func (r *ParamRepo) GetCustomParameter(ctx context.Context, configKey string) (map[string]any, error) {
	const query = `SELECT param_key, value FROM custom_params WHERE config_key = ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, configKey)
	if err != nil {
		return nil, fmt.Errorf("get custom parameter %s: %w", configKey, err)
	}
	defer rows.Close()

	params := map[string]any{}
	for rows.Next() {
		var paramKey, raw string
		if err := rows.Scan(&paramKey, &raw); err != nil {
			return nil, fmt.Errorf("scan custom parameter %s: %w", configKey, err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode custom parameter %s.%s: %w", configKey, paramKey, err)
		}
		params[paramKey] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom parameters %s: %w", configKey, err)
	}
	return params, nil
}

// SetCustomParameter stores one parameter entry, replacing any previous
// value. The value is JSON-encoded.
func (r *ParamRepo) SetCustomParameter(ctx context.Context, configKey, paramKey string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode custom parameter %s.%s: %w", configKey, paramKey, err)
	}
	const query = `
		INSERT INTO custom_params (config_key, param_key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (config_key, param_key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, configKey, paramKey, string(raw)); err != nil {
		return fmt.Errorf("set custom parameter %s.%s: %w", configKey, paramKey, err)
	}
	return nil
}
