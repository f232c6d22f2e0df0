/*
Package sqlite provides a SQLite-backed workforce.Store.

PURPOSE:
  Persists operatives, sites, clients and assignments so the API can
  serve the same roster across restarts. The engine reads whole
  collections, so every List call is a plain table scan in insertion
  order.

KEY TABLES:
  operatives:  one row per operative; certificates and restrictions are
               JSON columns because they are always read and written whole
  sites:       dates as YYYY-MM-DD text, capacity as max_operatives
               (0 = uncapped) plus fulfillment_required
  clients:     job types (pay rate / client cost) as a JSON column
  assignments: one row per site-operative link

DATES:
  Stored as YYYY-MM-DD text. Reading goes through generic.ParseDate, so a
  hand-edited or legacy value that does not parse comes back as a zero
  TimePoint instead of failing the whole read.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. ":memory:" databases
  exist per connection, so one connection keeps tests and dev servers on
  the same database.

USAGE:
  store, err := sqlite.New("./data/deploy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := workforce.NewService(store, bus)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - workforce/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// Store implements workforce.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ workforce.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
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

// Ping checks the connection. Served by /healthz.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operatives (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		phone TEXT,
		employment_type TEXT,
		trade TEXT,
		certificates_json TEXT NOT NULL DEFAULT '[]',
		restrictions_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		job_types_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		client_id TEXT,
		name TEXT NOT NULL,
		address TEXT,
		start_date TEXT,
		end_date TEXT,
		required_trades_json TEXT NOT NULL DEFAULT '[]',
		max_operatives INTEGER NOT NULL DEFAULT 0,
		fulfillment_required INTEGER NOT NULL DEFAULT 1,
		project_type TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sites_client ON sites(client_id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		operative_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT '',
		created_at TEXT
	);

	-- Overlap checks scan one operative's assignments.
	CREATE INDEX IF NOT EXISTS idx_assignments_operative
		ON assignments(operative_id, start_date, end_date);
	-- Headcount and fill scan one site's assignments.
	CREATE INDEX IF NOT EXISTS idx_assignments_site
		ON assignments(site_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JSON COLUMN RECORDS
// =============================================================================

type certificateRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider,omitempty"`
	IssueDate   string `json:"issue_date,omitempty"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	Status      string `json:"status,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
	Type        string `json:"type,omitempty"`
}

type restrictionRecord struct {
	ID         string `json:"id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Note       string `json:"note,omitempty"`
}

type jobTypeRecord struct {
	Name       string          `json:"name"`
	PayRate    decimal.Decimal `json:"pay_rate"`
	ClientCost decimal.Decimal `json:"client_cost"`
}

func encodeCertificates(certs []workforce.Certificate) (string, error) {
	recs := make([]certificateRecord, 0, len(certs))
	for _, c := range certs {
		recs = append(recs, certificateRecord{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			IssueDate:   c.IssueDate.String(),
			ExpiryDate:  c.ExpiryDate.String(),
			Status:      string(c.Status),
			DocumentURL: c.DocumentURL,
			Type:        string(c.Type),
		})
	}
	return marshal(recs)
}

func decodeCertificates(raw string) ([]workforce.Certificate, error) {
	var recs []certificateRecord
	if err := unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode certificates: %w", err)
	}
	out := make([]workforce.Certificate, 0, len(recs))
	for _, r := range recs {
		issue, _ := generic.ParseDate(r.IssueDate)
		expiry, _ := generic.ParseDate(r.ExpiryDate)
		out = append(out, workforce.Certificate{
			ID:          r.ID,
			Name:        r.Name,
			Provider:    r.Provider,
			IssueDate:   issue,
			ExpiryDate:  expiry,
			Status:      workforce.CertStatus(r.Status),
			DocumentURL: r.DocumentURL,
			Type:        workforce.CertType(r.Type),
		})
	}
	return out, nil
}

func encodeRestrictions(rs []workforce.Restriction) (string, error) {
	recs := make([]restrictionRecord, 0, len(rs))
	for _, r := range rs {
		recs = append(recs, restrictionRecord{ID: r.ID, TargetType: string(r.TargetType), TargetID: r.TargetID, Note: r.Note})
	}
	return marshal(recs)
}

func decodeRestrictions(raw string) ([]workforce.Restriction, error) {
	var recs []restrictionRecord
	if err := unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode restrictions: %w", err)
	}
	out := make([]workforce.Restriction, 0, len(recs))
	for _, r := range recs {
		out = append(out, workforce.Restriction{ID: r.ID, TargetType: workforce.TargetType(r.TargetType), TargetID: r.TargetID, Note: r.Note})
	}
	return out, nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshal(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// =============================================================================
// READER
// =============================================================================

func (s *Store) ListOperatives(ctx context.Context) ([]workforce.Operative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, phone, employment_type, trade,
		       certificates_json, restrictions_json
		FROM operatives ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list operatives: %w", err)
	}
	defer rows.Close()

	var ops []workforce.Operative
	for rows.Next() {
		var (
			o                  workforce.Operative
			id                 string
			email, phone       sql.NullString
			employment, trade  sql.NullString
			certsRaw, restrRaw string
		)
		if err := rows.Scan(&id, &o.FirstName, &o.LastName, &email, &phone, &employment, &trade, &certsRaw, &restrRaw); err != nil {
			return nil, err
		}
		o.ID = workforce.OperativeID(id)
		o.Email, o.Phone = email.String, phone.String
		o.EmploymentType, o.Trade = employment.String, trade.String
		if o.Certificates, err = decodeCertificates(certsRaw); err != nil {
			return nil, fmt.Errorf("operative %s: %w", id, err)
		}
		if o.Restrictions, err = decodeRestrictions(restrRaw); err != nil {
			return nil, fmt.Errorf("operative %s: %w", id, err)
		}
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

func (s *Store) ListSites(ctx context.Context) ([]workforce.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, name, address, start_date, end_date,
		       required_trades_json, max_operatives, fulfillment_required, project_type
		FROM sites ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []workforce.Site
	for rows.Next() {
		var (
			site                     workforce.Site
			id                       string
			clientID, address        sql.NullString
			start, end, projectType  sql.NullString
			tradesRaw                string
			maxOperatives, fulfilReq int
		)
		if err := rows.Scan(&id, &clientID, &site.Name, &address, &start, &end, &tradesRaw, &maxOperatives, &fulfilReq, &projectType); err != nil {
			return nil, err
		}
		site.ID = workforce.SiteID(id)
		site.ClientID = workforce.ClientID(clientID.String)
		site.Address = address.String
		site.Start, _ = generic.ParseDate(start.String)
		site.End, _ = generic.ParseDate(end.String)
		site.Capacity = workforce.CapacityFromMax(maxOperatives)
		site.FulfillmentRequired = fulfilReq != 0
		site.ProjectType = projectType.String
		if err := unmarshal(tradesRaw, &site.RequiredTrades); err != nil {
			return nil, fmt.Errorf("site %s: decode trades: %w", id, err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) ListAssignments(ctx context.Context) ([]workforce.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operative_id, site_id, start_date, end_date, status, created_at
		FROM assignments ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []workforce.Assignment
	for rows.Next() {
		var (
			id, opID, siteID, status string
			start, end, createdAt    sql.NullString
		)
		if err := rows.Scan(&id, &opID, &siteID, &start, &end, &status, &createdAt); err != nil {
			return nil, err
		}
		a := workforce.Assignment{
			ID:          workforce.AssignmentID(id),
			OperativeID: workforce.OperativeID(opID),
			SiteID:      workforce.SiteID(siteID),
			Status:      workforce.AssignmentStatus(status),
		}
		a.Period.Start, _ = generic.ParseDate(start.String)
		a.Period.End, _ = generic.ParseDate(end.String)
		a.CreatedAt, _ = generic.ParseDate(createdAt.String)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListClients(ctx context.Context) ([]workforce.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, job_types_json FROM clients ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []workforce.Client
	for rows.Next() {
		var id, name, raw string
		if err := rows.Scan(&id, &name, &raw); err != nil {
			return nil, err
		}
		var recs []jobTypeRecord
		if err := unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("client %s: decode job types: %w", id, err)
		}
		c := workforce.Client{ID: workforce.ClientID(id), Name: name}
		for _, r := range recs {
			c.JobTypes = append(c.JobTypes, workforce.JobType{Name: r.Name, PayRate: r.PayRate, ClientCost: r.ClientCost})
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// WRITER
// =============================================================================

func (s *Store) CreateAssignment(ctx context.Context, a workforce.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, operative_id, site_id, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(a.OperativeID), string(a.SiteID),
		nullString(a.Period.Start.String()), nullString(a.Period.End.String()),
		string(a.Status), nullString(a.CreatedAt.String()),
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *Store) UpdateAssignmentStatus(ctx context.Context, id workforce.AssignmentID, status workforce.AssignmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE assignments SET status = ? WHERE id = ?", string(status), string(id))
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return requireRow(res, generic.ErrAssignmentNotFound, "assignment", string(id))
}

func (s *Store) DeleteAssignment(ctx context.Context, id workforce.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return requireRow(res, generic.ErrAssignmentNotFound, "assignment", string(id))
}

func (s *Store) UpsertCertificates(ctx context.Context, operativeID workforce.OperativeID, certs []workforce.Certificate) error {
	raw, err := encodeCertificates(certs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE operatives SET certificates_json = ?, updated_at = ? WHERE id = ?",
		raw, now(), string(operativeID),
	)
	if err != nil {
		return fmt.Errorf("update certificates: %w", err)
	}
	return requireRow(res, generic.ErrOperativeNotFound, "operative", string(operativeID))
}

// UpsertRestriction reads, merges and writes the restriction list in one
// transaction.
func (s *Store) UpsertRestriction(ctx context.Context, operativeID workforce.OperativeID, r workforce.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, "SELECT restrictions_json FROM operatives WHERE id = ?", string(operativeID)).Scan(&raw)
	if err == sql.ErrNoRows {
		return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	if err != nil {
		return fmt.Errorf("read restrictions: %w", err)
	}

	existing, err := decodeRestrictions(raw)
	if err != nil {
		return err
	}
	merged := workforce.UpsertRestriction(workforce.Operative{Restrictions: existing}, r)
	encoded, err := encodeRestrictions(merged.Restrictions)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE operatives SET restrictions_json = ?, updated_at = ? WHERE id = ?",
		encoded, now(), string(operativeID),
	); err != nil {
		return fmt.Errorf("write restrictions: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) SaveOperative(ctx context.Context, o workforce.Operative) error {
	certs, err := encodeCertificates(o.Certificates)
	if err != nil {
		return err
	}
	restrictions, err := encodeRestrictions(o.Restrictions)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO operatives (id, first_name, last_name, email, phone, employment_type, trade,
		                        certificates_json, restrictions_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			employment_type = excluded.employment_type,
			trade = excluded.trade,
			certificates_json = excluded.certificates_json,
			restrictions_json = excluded.restrictions_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(o.ID), o.FirstName, o.LastName,
		nullString(o.Email), nullString(o.Phone), nullString(o.EmploymentType), nullString(o.Trade),
		certs, restrictions, now(),
	)
	if err != nil {
		return fmt.Errorf("save operative: %w", err)
	}
	return nil
}

func (s *Store) SaveSite(ctx context.Context, site workforce.Site) error {
	trades, err := marshal(nonNil(site.RequiredTrades))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sites (id, client_id, name, address, start_date, end_date,
		                   required_trades_json, max_operatives, fulfillment_required, project_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			address = excluded.address,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			required_trades_json = excluded.required_trades_json,
			max_operatives = excluded.max_operatives,
			fulfillment_required = excluded.fulfillment_required,
			project_type = excluded.project_type,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(site.ID), nullString(string(site.ClientID)), site.Name, nullString(site.Address),
		nullString(site.Start.String()), nullString(site.End.String()),
		trades, site.Capacity.Max(), boolInt(site.FulfillmentRequired), nullString(site.ProjectType), now(),
	)
	if err != nil {
		return fmt.Errorf("save site: %w", err)
	}
	return nil
}

func (s *Store) SaveClient(ctx context.Context, c workforce.Client) error {
	recs := make([]jobTypeRecord, 0, len(c.JobTypes))
	for _, jt := range c.JobTypes {
		recs = append(recs, jobTypeRecord{Name: jt.Name, PayRate: jt.PayRate, ClientCost: jt.ClientCost})
	}
	raw, err := marshal(recs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, job_types_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			job_types_json = excluded.job_types_json,
			updated_at = excluded.updated_at`,
		string(c.ID), c.Name, raw, now(),
	)
	if err != nil {
		return fmt.Errorf("save client: %w", err)
	}
	return nil
}

// Reset clears all data (for demo/testing purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"assignments", "sites", "clients", "operatives"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func requireRow(res sql.Result, sentinel error, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFound(sentinel, kind, id)
	}
	return nil
}
