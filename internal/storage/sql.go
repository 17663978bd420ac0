package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/xaenox/voicememo/internal/errs"
	"github.com/xaenox/voicememo/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the SQLite database file; ":memory:" for a throwaway database.
	Path string
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SQLStorage is a Backend over Postgres (lib/pq) or SQLite (modernc).
type SQLStorage struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewSQLStorage(config DatabaseConfig) (*SQLStorage, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if driver == DriverSQLite {
		// one connection keeps ":memory:" databases shared
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: error connecting to the database: %v", errs.ErrUnavailable, err)
	}

	s := &SQLStorage{db: db, driver: driver, now: time.Now}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return s, nil
}

func (s *SQLStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to '$n' for Postgres.
func (s *SQLStorage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) AddClient(ctx context.Context, c models.Client) (models.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO clients (id, name, risk_level, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.RiskLevel, c.Notes, c.CreatedAt)
	if err != nil {
		return models.Client{}, fmt.Errorf("error creating client: %w", err)
	}
	return c, nil
}

func (s *SQLStorage) AddSession(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = "scheduled"
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sessions (id, client_id, starts_at, ends_at, status, location)
		VALUES (?, ?, ?, ?, ?, ?)`),
		sess.ID, sess.ClientID, sess.StartsAt, sess.EndsAt, sess.Status, sess.Location)
	if err != nil {
		return models.Session{}, fmt.Errorf("error creating session: %w", err)
	}
	return sess, nil
}

func (s *SQLStorage) AddNote(ctx context.Context, n models.Note) (models.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO notes (id, client_id, session_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		n.ID, n.ClientID, n.SessionID, n.Content, n.CreatedAt)
	if err != nil {
		return models.Note{}, fmt.Errorf("error creating note: %w", err)
	}
	return n, nil
}

func (s *SQLStorage) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, risk_level, notes, created_at
		FROM clients
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error querying clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.RiskLevel, &c.Notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

const sessionColumns = `
		SELECT s.id, s.client_id, COALESCE(c.name, ''), s.starts_at, s.ends_at, s.status, s.location
		FROM sessions s
		LEFT JOIN clients c ON c.id = s.client_id`

func (s *SQLStorage) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionColumns+`
		ORDER BY s.starts_at`)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.ClientID, &sess.ClientName, &sess.StartsAt, &sess.EndsAt, &sess.Status, &sess.Location)
	if err != nil {
		return models.Session{}, fmt.Errorf("error scanning session: %w", err)
	}
	return sess, nil
}

func (s *SQLStorage) getSession(ctx context.Context, id string) (models.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(sessionColumns+`
		WHERE s.id = ?`), id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	return sess, err
}

func (s *SQLStorage) ListNotesForClient(ctx context.Context, clientID string) ([]models.Note, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM clients WHERE id = ?`), clientID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("error querying client: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("client %s: %w", clientID, errs.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, client_id, session_id, content, created_at
		FROM notes
		WHERE client_id = ?
		ORDER BY created_at DESC`), clientID)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.ClientID, &n.SessionID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLStorage) NextSessionPrep(ctx context.Context, sessionID, clientID string) (models.SessionPrep, error) {
	var (
		p          models.SessionPrep
		focus, ups string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT session_id, client_id, summary, focus_areas, open_follow_ups
		FROM session_preps
		WHERE session_id = ?`), sessionID).Scan(&p.SessionID, &p.ClientID, &p.Summary, &focus, &ups)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && clientID != "" && p.ClientID != clientID) {
		return models.SessionPrep{}, fmt.Errorf("prep for session %s: %w", sessionID, errs.ErrNotFound)
	}
	if err != nil {
		return models.SessionPrep{}, fmt.Errorf("error querying session prep: %w", err)
	}
	if err := json.Unmarshal([]byte(focus), &p.FocusAreas); err != nil {
		return models.SessionPrep{}, fmt.Errorf("%w: focus areas: %v", errs.ErrDecodeFailure, err)
	}
	if err := json.Unmarshal([]byte(ups), &p.OpenFollowUps); err != nil {
		return models.SessionPrep{}, fmt.Errorf("%w: open follow-ups: %v", errs.ErrDecodeFailure, err)
	}
	return p, nil
}

func (s *SQLStorage) GenerateSessionPrep(ctx context.Context, sessionID string) (models.SessionPrep, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return models.SessionPrep{}, err
	}
	notes, err := s.ListNotesForClient(ctx, sess.ClientID)
	if err != nil {
		return models.SessionPrep{}, err
	}
	reminders, err := s.remindersForClient(ctx, sess.ClientID)
	if err != nil {
		return models.SessionPrep{}, err
	}

	p := buildPrep(sess, notes, reminders)
	focus, _ := json.Marshal(p.FocusAreas)
	ups, _ := json.Marshal(p.OpenFollowUps)
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO session_preps (session_id, client_id, summary, focus_areas, open_follow_ups)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			client_id = excluded.client_id,
			summary = excluded.summary,
			focus_areas = excluded.focus_areas,
			open_follow_ups = excluded.open_follow_ups`),
		p.SessionID, p.ClientID, p.Summary, string(focus), string(ups))
	if err != nil {
		return models.SessionPrep{}, fmt.Errorf("error saving session prep: %w", err)
	}
	return p, nil
}

func (s *SQLStorage) remindersForClient(ctx context.Context, clientID string) ([]models.ReminderRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, client_id, text, due_at, created_at
		FROM reminder_records
		WHERE client_id = ?
		ORDER BY created_at`), clientID)
	if err != nil {
		return nil, fmt.Errorf("error querying reminder records: %w", err)
	}
	defer rows.Close()

	var out []models.ReminderRecord
	for rows.Next() {
		var (
			r   models.ReminderRecord
			due sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Text, &due, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder record: %w", err)
		}
		if due.Valid {
			r.DueAt = &due.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStorage) CreateReminderRecord(ctx context.Context, rec models.ReminderRecord) (models.ReminderRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	var due sql.NullTime
	if rec.DueAt != nil {
		due = sql.NullTime{Time: *rec.DueAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO reminder_records (id, client_id, text, due_at, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		rec.ID, rec.ClientID, rec.Text, due, rec.CreatedAt)
	if err != nil {
		return models.ReminderRecord{}, fmt.Errorf("error creating reminder record: %w", err)
	}
	return rec, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
