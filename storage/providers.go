package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ProviderRecord is the persisted form of a tool-provider registration.
// Secrets (API keys, bearer tokens) are not stored here; they live in the
// encrypted credential store keyed by provider id.
type ProviderRecord struct {
	ID    string
	Scope string
	Name  string

	Transport string

	Command string
	Args    []string
	Env     map[string]string

	BaseURL  string
	SubPaths map[string]string

	AuthType string

	ConnectTimeoutSecs int
	CallTimeoutSecs    int
	MaxRetries         int
	RetryDelayMs       int

	Enabled     bool
	AutoConnect bool

	// LastConnectedAt is zero until the provider's first successful connect.
	LastConnectedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Store) SaveProvider(rec ProviderRecord) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	env, err := json.Marshal(rec.Env)
	if err != nil {
		return fmt.Errorf("failed to encode env: %w", err)
	}
	subPaths, err := json.Marshal(rec.SubPaths)
	if err != nil {
		return fmt.Errorf("failed to encode sub paths: %w", err)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	var lastConnected any
	if !rec.LastConnectedAt.IsZero() {
		lastConnected = rec.LastConnectedAt
	}

	_, err = s.db.Exec(`
		INSERT INTO providers (
			id, scope, name, transport, command, args, env, base_url, sub_paths,
			auth_type, connect_timeout_secs, call_timeout_secs, max_retries,
			retry_delay_ms, enabled, auto_connect, last_connected_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, scope) DO UPDATE SET
			name = excluded.name,
			transport = excluded.transport,
			command = excluded.command,
			args = excluded.args,
			env = excluded.env,
			base_url = excluded.base_url,
			sub_paths = excluded.sub_paths,
			auth_type = excluded.auth_type,
			connect_timeout_secs = excluded.connect_timeout_secs,
			call_timeout_secs = excluded.call_timeout_secs,
			max_retries = excluded.max_retries,
			retry_delay_ms = excluded.retry_delay_ms,
			enabled = excluded.enabled,
			auto_connect = excluded.auto_connect,
			last_connected_at = excluded.last_connected_at,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Scope, rec.Name, rec.Transport, rec.Command, string(args), string(env),
		rec.BaseURL, string(subPaths), rec.AuthType, rec.ConnectTimeoutSecs, rec.CallTimeoutSecs,
		rec.MaxRetries, rec.RetryDelayMs, rec.Enabled, rec.AutoConnect, lastConnected, rec.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save provider %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) GetProvider(scope, id string) (*ProviderRecord, error) {
	row := s.db.QueryRow(providerSelect+` WHERE id = ? AND scope = ?`, id, scope)
	rec, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store) ListProviders(scope string) ([]ProviderRecord, error) {
	rows, err := s.db.Query(providerSelect+` WHERE scope = ? ORDER BY name ASC`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var records []ProviderRecord
	for rows.Next() {
		rec, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *Store) DeleteProvider(scope, id string) error {
	if _, err := s.db.Exec(`DELETE FROM providers WHERE id = ? AND scope = ?`, id, scope); err != nil {
		return fmt.Errorf("failed to delete provider %s: %w", id, err)
	}
	return nil
}

// TouchProviderConnected stamps the last successful connect time without
// rewriting the rest of the registration.
func (s *Store) TouchProviderConnected(scope, id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE providers SET last_connected_at = ?, updated_at = ? WHERE id = ? AND scope = ?`,
		at, time.Now(), id, scope,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp last connect for provider %s: %w", id, err)
	}
	return nil
}

const providerSelect = `
	SELECT id, scope, name, transport, command, args, env, base_url, sub_paths,
	       auth_type, connect_timeout_secs, call_timeout_secs, max_retries,
	       retry_delay_ms, enabled, auto_connect, last_connected_at, created_at, updated_at
	FROM providers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*ProviderRecord, error) {
	var rec ProviderRecord
	var args, env, subPaths string
	var lastConnected sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Scope, &rec.Name, &rec.Transport, &rec.Command, &args, &env,
		&rec.BaseURL, &subPaths, &rec.AuthType, &rec.ConnectTimeoutSecs, &rec.CallTimeoutSecs,
		&rec.MaxRetries, &rec.RetryDelayMs, &rec.Enabled, &rec.AutoConnect,
		&lastConnected, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastConnected.Valid {
		rec.LastConnectedAt = lastConnected.Time
	}

	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return nil, fmt.Errorf("corrupt args for provider %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(env), &rec.Env); err != nil {
		return nil, fmt.Errorf("corrupt env for provider %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(subPaths), &rec.SubPaths); err != nil {
		return nil, fmt.Errorf("corrupt sub paths for provider %s: %w", rec.ID, err)
	}

	return &rec, nil
}
