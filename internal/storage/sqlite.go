package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/omshejul/passkey-service/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the durable account and credential store. A single SQLite
// file backs both so the delete path can re-check the credential count
// inside the same transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the store at path and applies bundled migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	cleanPath := filepath.Clean(path)

	if err := runMigrations(cleanPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func runMigrations(path string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Timestamps are stored as milliseconds since epoch, UTC.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	var createdAt, updatedAt int64

	err := row.Scan(&account.ID, &account.Email, &account.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return &account, nil
}

func (s *SQLiteStore) SaveAccount(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, updated_at = excluded.updated_at`,
		account.ID, account.Email, account.Name, toMillis(account.CreatedAt), toMillis(account.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAccountByOAuth(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.email, a.name, a.created_at, a.updated_at
		 FROM accounts a
		 JOIN oauth_links l ON l.user_id = a.id
		 WHERE l.provider = ? AND l.provider_account_id = ?`,
		provider, providerAccountID)
	return scanAccount(row)
}

func (s *SQLiteStore) SaveOAuthLink(ctx context.Context, link *models.OAuthLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_links (provider, provider_account_id, user_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(provider, provider_account_id) DO NOTHING`,
		link.Provider, link.ProviderAccountID, link.UserID, toMillis(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save oauth link: %w", err)
	}
	return nil
}

const authenticatorColumns = `id, user_id, credential_id, credential_device_type, credential_backed_up,
	transports, label, last_used, created_at, updated_at, credential_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthenticator(row rowScanner) (*models.Authenticator, error) {
	var a models.Authenticator
	var backedUp int
	var lastUsed sql.NullInt64
	var createdAt, updatedAt int64
	var credentialJSON string

	err := row.Scan(&a.ID, &a.UserID, &a.CredentialID, &a.CredentialDeviceType, &backedUp,
		&a.Transports, &a.Label, &lastUsed, &createdAt, &updatedAt, &credentialJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan authenticator: %w", err)
	}

	a.CredentialBackedUp = backedUp != 0
	if lastUsed.Valid {
		t := fromMillis(lastUsed.Int64)
		a.LastUsed = &t
	}
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)

	var cred webauthn.Credential
	if err := json.Unmarshal([]byte(credentialJSON), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored credential: %w", err)
	}
	a.Credential = cred

	return &a, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]*models.Authenticator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authenticatorColumns+` FROM authenticators WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authenticators: %w", err)
	}
	defer rows.Close()

	var records []*models.Authenticator
	for rows.Next() {
		a, err := scanAuthenticator(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate authenticators: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) FindOwned(ctx context.Context, userID, id string) (*models.Authenticator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authenticatorColumns+` FROM authenticators WHERE id = ? AND user_id = ?`, id, userID)
	return scanAuthenticator(row)
}

func (s *SQLiteStore) FindByCredentialID(ctx context.Context, credentialID string) (*models.Authenticator, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authenticatorColumns+` FROM authenticators WHERE credential_id = ?`, credentialID)
	return scanAuthenticator(row)
}

func (s *SQLiteStore) Create(ctx context.Context, authenticator *models.Authenticator) error {
	credentialJSON, err := json.Marshal(authenticator.Credential)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	var lastUsed sql.NullInt64
	if authenticator.LastUsed != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*authenticator.LastUsed), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO authenticators (`+authenticatorColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		authenticator.ID, authenticator.UserID, authenticator.CredentialID,
		authenticator.CredentialDeviceType, boolToInt(authenticator.CredentialBackedUp),
		authenticator.Transports, authenticator.Label, lastUsed,
		toMillis(authenticator.CreatedAt), toMillis(authenticator.UpdatedAt), string(credentialJSON))
	if isUniqueViolation(err) {
		return ErrDuplicateCredential
	}
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) UpdateLabel(ctx context.Context, userID, id, label string) (*models.Authenticator, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE authenticators SET label = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		label, toMillis(time.Now()), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update label: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check label update: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.FindOwned(ctx, userID, id)
}

func (s *SQLiteStore) TouchLastUsed(ctx context.Context, credentialID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE authenticators SET last_used = ?, updated_at = ? WHERE credential_id = ?`,
		toMillis(at), toMillis(at), credentialID)
	if err != nil {
		return fmt.Errorf("failed to touch last used: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check last used update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an owned authenticator. The ownership check, count check
// and delete all run in one transaction so two racing deletes of a user's
// last two passkeys cannot both pass the count check.
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	var owned int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authenticators WHERE id = ? AND user_id = ?`, id, userID).Scan(&owned)
	if err != nil {
		return fmt.Errorf("failed to check authenticator ownership: %w", err)
	}
	if owned == 0 {
		return ErrNotFound
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authenticators WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count authenticators: %w", err)
	}
	if count <= 1 {
		return ErrLastCredential
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM authenticators WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to delete authenticator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authenticators WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count authenticators: %w", err)
	}
	return count, nil
}
