package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charted-solutions/loanrisk/internal/audit"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store persists the active session between CLI invocations. This is the
// enclosing application's session persistence, not the core's: every core
// component stays pure, and retention ends when the session is reset.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and migrates) the session database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("dbPath cannot be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite does not benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// expectedSchemaVersion is the latest schema version the application expects.
const expectedSchemaVersion = 1

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= expectedSchemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			session_id TEXT NOT NULL,
			key_kind TEXT NOT NULL,
			key_value TEXT NOT NULL,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			ssn TEXT,
			student_id TEXT,
			loan_type TEXT,
			major TEXT,
			enrollment_status TEXT,
			provenance TEXT NOT NULL,
			days_delinquent REAL,
			outstanding_balance REAL,
			has_delinquency BOOLEAN NOT NULL,
			duplicates INTEGER DEFAULT 0,
			PRIMARY KEY (session_id, key_kind, key_value),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS scored_profiles (
			session_id TEXT NOT NULL,
			key_kind TEXT NOT NULL,
			key_value TEXT NOT NULL,
			score REAL NOT NULL,
			tier TEXT NOT NULL,
			factors TEXT NOT NULL,
			PRIMARY KEY (session_id, key_kind, key_value),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS conflicts (
			session_id TEXT NOT NULL,
			key_kind TEXT NOT NULL,
			key_value TEXT NOT NULL,
			ssn_match TEXT,
			student_id_match TEXT,
			detail TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			actor TEXT,
			kind TEXT NOT NULL,
			subject_count INTEGER NOT NULL,
			allowed BOOLEAN NOT NULL,
			rule_ids TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_seq ON audit_entries(session_id, seq)`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", expectedSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

// Save replaces the persisted snapshot with the given session.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session cannot be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"audit_entries", "conflicts", "scored_profiles", "profiles", "sessions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		sess.ID, sess.CreatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, p := range sess.Profiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (session_id, key_kind, key_value, first_name, last_name,
				email, ssn, student_id, loan_type, major, enrollment_status, provenance,
				days_delinquent, outstanding_balance, has_delinquency, duplicates)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, string(p.Key.Kind), p.Key.Value, p.FirstName, p.LastName,
			p.Email, p.SSN, p.StudentID, p.LoanType, p.Major, p.EnrollmentStatus,
			string(p.Provenance), p.DaysDelinquent, p.OutstandingBalance,
			p.HasDelinquency, p.Duplicates); err != nil {
			return fmt.Errorf("failed to save profile %s: %w", p.Key, err)
		}
	}

	for _, sp := range sess.Scored {
		factors, err := json.Marshal(sp.Factors)
		if err != nil {
			return fmt.Errorf("failed to encode factors for %s: %w", sp.Profile.Key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scored_profiles (session_id, key_kind, key_value, score, tier, factors)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, string(sp.Profile.Key.Kind), sp.Profile.Key.Value,
			sp.Score, string(sp.Tier), string(factors)); err != nil {
			return fmt.Errorf("failed to save scored profile %s: %w", sp.Profile.Key, err)
		}
	}

	for _, c := range sess.Conflicts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conflicts (session_id, key_kind, key_value, ssn_match, student_id_match, detail)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, string(c.Key.Kind), c.Key.Value, c.SSNMatch, c.StudentIDMatch, c.Detail); err != nil {
			return fmt.Errorf("failed to save conflict %s: %w", c.Key, err)
		}
	}

	for seq, e := range sess.Recorder.Entries() {
		ruleIDs, err := json.Marshal(e.RuleIDs)
		if err != nil {
			return fmt.Errorf("failed to encode rule ids for %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_entries (id, session_id, seq, timestamp, actor, kind, subject_count, allowed, rule_ids)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, sess.ID, seq, e.Timestamp, e.Actor, string(e.Kind),
			e.SubjectCount, e.Allowed, string(ruleIDs)); err != nil {
			return fmt.Errorf("failed to save audit entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Load returns the persisted session, or common.ErrNoSession when none has
// been saved.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	sess := &Session{Recorder: audit.NewRecorder()}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sessions LIMIT 1`).Scan(&sess.ID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.Profiles, err = s.loadProfiles(ctx, sess.ID); err != nil {
		return nil, err
	}
	if sess.Scored, err = s.loadScored(ctx, sess.ID, sess.Profiles); err != nil {
		return nil, err
	}
	if sess.Conflicts, err = s.loadConflicts(ctx, sess.ID); err != nil {
		return nil, err
	}

	entries, err := s.loadAuditEntries(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Recorder.Restore(entries)

	return sess, nil
}

func (s *Store) loadProfiles(ctx context.Context, sessionID string) ([]model.UnifiedProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key_kind, key_value, first_name, last_name, email, ssn, student_id,
			loan_type, major, enrollment_status, provenance, days_delinquent,
			outstanding_balance, has_delinquency, duplicates
		 FROM profiles WHERE session_id = ? ORDER BY key_kind, key_value`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []model.UnifiedProfile
	for rows.Next() {
		var p model.UnifiedProfile
		var kind, provenance string
		if err := rows.Scan(&kind, &p.Key.Value, &p.FirstName, &p.LastName, &p.Email,
			&p.SSN, &p.StudentID, &p.LoanType, &p.Major, &p.EnrollmentStatus,
			&provenance, &p.DaysDelinquent, &p.OutstandingBalance,
			&p.HasDelinquency, &p.Duplicates); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.Key.Kind = model.KeyKind(kind)
		p.Provenance = model.Provenance(provenance)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) loadScored(ctx context.Context, sessionID string, profiles []model.UnifiedProfile) ([]model.ScoredProfile, error) {
	byKey := make(map[model.BorrowerKey]model.UnifiedProfile, len(profiles))
	for _, p := range profiles {
		byKey[p.Key] = p
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key_kind, key_value, score, tier, factors
		 FROM scored_profiles WHERE session_id = ? ORDER BY key_kind, key_value`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scored profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []model.ScoredProfile
	for rows.Next() {
		var sp model.ScoredProfile
		var kind, tier, factors string
		var keyValue string
		if err := rows.Scan(&kind, &keyValue, &sp.Score, &tier, &factors); err != nil {
			return nil, fmt.Errorf("failed to scan scored profile: %w", err)
		}
		key := model.BorrowerKey{Kind: model.KeyKind(kind), Value: keyValue}
		profile, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("scored profile %s has no matching profile row", key)
		}
		sp.Profile = profile
		sp.Tier = model.RiskTier(tier)
		if err := json.Unmarshal([]byte(factors), &sp.Factors); err != nil {
			return nil, fmt.Errorf("failed to decode factors for %s: %w", key, err)
		}
		scored = append(scored, sp)
	}
	return scored, rows.Err()
}

func (s *Store) loadConflicts(ctx context.Context, sessionID string) ([]model.LinkageConflict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key_kind, key_value, ssn_match, student_id_match, detail
		 FROM conflicts WHERE session_id = ? ORDER BY key_kind, key_value`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conflicts []model.LinkageConflict
	for rows.Next() {
		var c model.LinkageConflict
		var kind string
		if err := rows.Scan(&kind, &c.Key.Value, &c.SSNMatch, &c.StudentIDMatch, &c.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.Key.Kind = model.KeyKind(kind)
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (s *Store) loadAuditEntries(ctx context.Context, sessionID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, actor, kind, subject_count, allowed, rule_ids
		 FROM audit_entries WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var kind, ruleIDs string
		var ts time.Time
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &kind, &e.SubjectCount, &e.Allowed, &ruleIDs); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = ts
		e.Kind = model.AuditKind(kind)
		if err := json.Unmarshal([]byte(ruleIDs), &e.RuleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode rule ids for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reset discards the persisted session entirely.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"audit_entries", "conflicts", "scored_profiles", "profiles", "sessions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
