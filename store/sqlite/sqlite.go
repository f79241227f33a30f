/*
Package sqlite provides a SQLite-backed implementation of gp.TxStore.

PURPOSE:
  Persists the whole practice: role registries, bookings with their day
  index, notes with their patient index, and the escrow ledger. The same
  schema works on PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on transactions, notes or registries
  - bookings is the only table updated in place (status, patient link)
  - Idempotency keys are UNIQUE: a refund cannot be written twice

KEY TABLES:
  admins, doctors, patients: Role records, insertion order kept by seq
  bookings:                  Slots; id is the 0-based creation index
  notes:                     Note log; id is the 0-based creation index
  transactions:              Immutable ledger of all balance changes

SEQUENTIAL IDS:
  Booking and note ids are assigned as COUNT(*) inside the writing
  transaction. The connection pool is limited to one connection, so two
  writers can never observe the same count.

USAGE:
  store, err := sqlite.New("./data/gp.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine, err := gp.New(ctx, store, gp.Options{...})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - gp/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// Store implements gp.TxStore using SQLite.
type Store struct {
	*conn
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	store := &Store{conn: &conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS admins (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS doctors (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS patients (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		date_of_birth TEXT NOT NULL,
		birth_sex INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY,
		appointment_date TEXT NOT NULL,
		date_key TEXT NOT NULL,
		doctor_address TEXT NOT NULL,
		patient_address TEXT NOT NULL DEFAULT '',
		fee TEXT NOT NULL,
		status INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_date_key
		ON bookings(date_key, id);

	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY,
		subject_patient TEXT NOT NULL,
		added_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_subject
		ON notes(subject_patient, id);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		delta TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (gp.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Every read and
// write made through the gp.Store passed to fn uses that transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store gp.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements gp.Store over a querier.
type conn struct {
	q querier
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (c *conn) Append(ctx context.Context, tx generic.Transaction) error {
	return c.appendTx(ctx, c.q, tx)
}

func (c *conn) appendTx(ctx context.Context, q querier, tx generic.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, account, tx_type, delta, reference_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.Account),
		string(tx.Type),
		tx.Delta.Value.String(),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(tx.CreatedBy),
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (c *conn) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if keys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[tx.IdempotencyKey] = true
		}
	}

	// Already inside a transaction: the caller's commit makes the batch atomic.
	if _, ok := c.q.(*sql.Tx); ok {
		for _, tx := range txs {
			if err := c.appendTx(ctx, c.q, tx); err != nil {
				return err
			}
		}
		return nil
	}

	db, ok := c.q.(*sql.DB)
	if !ok {
		return fmt.Errorf("unsupported querier %T", c.q)
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := c.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// Load returns all transactions for an account in insertion order.
func (c *conn) Load(ctx context.Context, account generic.Address) ([]generic.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, account, tx_type, delta, reference_id, reason, idempotency_key, created_by, created_at
		FROM transactions
		WHERE account = ?
		ORDER BY seq ASC
	`, string(account))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// Exists checks if an idempotency key exists.
func (c *conn) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		id             string
		account        string
		txType         string
		delta          string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		createdBy      string
		createdAt      string
	)
	err := rows.Scan(&id, &account, &txType, &delta, &referenceID, &reason, &idempotencyKey, &createdBy, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	amount, err := generic.ParseSignedAmount(delta)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: %w", id, err)
	}
	tx.ID = generic.TransactionID(id)
	tx.Account = generic.Address(account)
	tx.Type = generic.TransactionType(txType)
	tx.Delta = amount
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = generic.Address(createdBy)
	tx.CreatedAt, err = parseTime(createdAt)
	return tx, err
}

// =============================================================================
// REGISTRIES (gp.RegistryStore interface)
// =============================================================================

func (c *conn) InsertAdmin(ctx context.Context, a gp.Admin) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO admins (address, name, active) VALUES (?, ?, ?)",
		string(a.Address), a.Name, a.Active)
	return insertErr("admin", a.Address, err)
}

func (c *conn) GetAdmin(ctx context.Context, addr generic.Address) (*gp.Admin, error) {
	var a gp.Admin
	var address string
	err := c.q.QueryRowContext(ctx,
		"SELECT address, name, active FROM admins WHERE address = ?", string(addr),
	).Scan(&address, &a.Name, &a.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	a.Address = generic.Address(address)
	return &a, nil
}

func (c *conn) ListAdmins(ctx context.Context) ([]generic.Address, error) {
	return c.listAddresses(ctx, "SELECT address FROM admins ORDER BY seq")
}

func (c *conn) InsertDoctor(ctx context.Context, d gp.Doctor) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO doctors (address, name, specialty, active) VALUES (?, ?, ?, ?)",
		string(d.Address), d.Name, d.Specialty, d.Active)
	return insertErr("doctor", d.Address, err)
}

func (c *conn) GetDoctor(ctx context.Context, addr generic.Address) (*gp.Doctor, error) {
	var d gp.Doctor
	var address string
	err := c.q.QueryRowContext(ctx,
		"SELECT address, name, specialty, active FROM doctors WHERE address = ?", string(addr),
	).Scan(&address, &d.Name, &d.Specialty, &d.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	d.Address = generic.Address(address)
	return &d, nil
}

func (c *conn) ListDoctors(ctx context.Context) ([]generic.Address, error) {
	return c.listAddresses(ctx, "SELECT address FROM doctors ORDER BY seq")
}

func (c *conn) InsertPatient(ctx context.Context, p gp.Patient) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO patients (address, name, date_of_birth, birth_sex, active) VALUES (?, ?, ?, ?, ?)",
		string(p.Address), p.Name, formatTime(p.DateOfBirth), int(p.BirthSex), p.Active)
	return insertErr("patient", p.Address, err)
}

func (c *conn) GetPatient(ctx context.Context, addr generic.Address) (*gp.Patient, error) {
	var (
		p       gp.Patient
		address string
		dob     string
		sex     int
	)
	err := c.q.QueryRowContext(ctx,
		"SELECT address, name, date_of_birth, birth_sex, active FROM patients WHERE address = ?", string(addr),
	).Scan(&address, &p.Name, &dob, &sex, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	p.Address = generic.Address(address)
	p.BirthSex = gp.Sex(sex)
	if p.DateOfBirth, err = parseTime(dob); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *conn) ListPatients(ctx context.Context) ([]generic.Address, error) {
	return c.listAddresses(ctx, "SELECT address FROM patients ORDER BY seq")
}

func (c *conn) listAddresses(ctx context.Context, query string, args ...any) ([]generic.Address, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var out []generic.Address
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, generic.Address(a))
	}
	return out, rows.Err()
}

// =============================================================================
// BOOKINGS (gp.BookingStore interface)
// =============================================================================

func (c *conn) InsertBooking(ctx context.Context, b gp.Booking) (gp.BookingID, error) {
	var next int64
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings").Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO bookings
		(id, appointment_date, date_key, doctor_address, patient_address, fee, status, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		next,
		formatTime(b.AppointmentDate),
		b.AppointmentDateKey,
		string(b.DoctorAddress),
		string(b.PatientAddress),
		b.Fee.Value.String(),
		int(b.Status),
		b.Active,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert booking: %w", err)
	}
	return gp.BookingID(next), nil
}

// UpdateBooking writes the mutable fields of a booking.
func (c *conn) UpdateBooking(ctx context.Context, b gp.Booking) error {
	res, err := c.q.ExecContext(ctx,
		"UPDATE bookings SET patient_address = ?, status = ?, active = ? WHERE id = ?",
		string(b.PatientAddress), int(b.Status), b.Active, int64(b.ID))
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %d: %w", b.ID, gp.ErrInvalidBooking)
	}
	return nil
}

func (c *conn) GetBooking(ctx context.Context, id gp.BookingID) (*gp.Booking, error) {
	var (
		b       gp.Booking
		rawID   int64
		date    string
		doctor  string
		patient string
		fee     string
		status  int
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, appointment_date, date_key, doctor_address, patient_address, fee, status, active
		FROM bookings WHERE id = ?
	`, int64(id)).Scan(&rawID, &date, &b.AppointmentDateKey, &doctor, &patient, &fee, &status, &b.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	b.ID = gp.BookingID(rawID)
	b.DoctorAddress = generic.Address(doctor)
	b.PatientAddress = generic.Address(patient)
	b.Status = gp.BookingStatus(status)
	if b.Fee, err = generic.ParseAmount(fee); err != nil {
		return nil, fmt.Errorf("booking %d: %w", rawID, err)
	}
	if b.AppointmentDate, err = parseTime(date); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *conn) ListBookings(ctx context.Context, dateKey string) ([]gp.BookingID, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id FROM bookings WHERE date_key = ? ORDER BY id", dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []gp.BookingID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, gp.BookingID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// NOTES (gp.NoteStore interface)
// =============================================================================

func (c *conn) InsertNote(ctx context.Context, n gp.Note) (gp.NoteID, error) {
	var next int64
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO notes (id, subject_patient, added_by, created_at, body) VALUES (?, ?, ?, ?, ?)",
		next, string(n.SubjectPatient), string(n.AddedBy), formatTime(n.Timestamp), n.Text)
	if err != nil {
		return 0, fmt.Errorf("failed to insert note: %w", err)
	}
	return gp.NoteID(next), nil
}

func (c *conn) GetNote(ctx context.Context, id gp.NoteID) (*gp.Note, error) {
	var (
		n       gp.Note
		rawID   int64
		subject string
		author  string
		created string
	)
	err := c.q.QueryRowContext(ctx,
		"SELECT id, subject_patient, added_by, created_at, body FROM notes WHERE id = ?", int64(id),
	).Scan(&rawID, &subject, &author, &created, &n.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	n.ID = gp.NoteID(rawID)
	n.SubjectPatient = generic.Address(subject)
	n.AddedBy = generic.Address(author)
	if n.Timestamp, err = parseTime(created); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *conn) ListNotes(ctx context.Context, patient generic.Address) ([]gp.NoteID, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id FROM notes WHERE subject_patient = ? ORDER BY id", string(patient))
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var out []gp.NoteID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, gp.NoteID(id))
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func insertErr(kind string, addr generic.Address, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s %s: %w", kind, addr, gp.ErrAlreadyRegistered)
	}
	return fmt.Errorf("failed to insert %s: %w", kind, err)
}
