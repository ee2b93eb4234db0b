// Package metadata stores the exported items of crates so that later units
// can depend on them as extern crates.
//
// Each exported version is one row holding the YAML-encoded items. Rows
// carry the metadata format they were written with; readers skip formats
// outside config.MetadataFormatConstraint.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/itemtree"
)

const schema = `
CREATE TABLE IF NOT EXISTS crates (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	format      TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	exported_at INTEGER NOT NULL,
	items       BLOB NOT NULL,
	UNIQUE (name, version)
);
CREATE INDEX IF NOT EXISTS crates_by_name ON crates (name);
`

// ErrCrateNotFound is returned when no version of a crate was exported.
var ErrCrateNotFound = errors.New("crate not found in metadata store")

// NoMatchError reports that versions exist but none satisfies the constraint.
type NoMatchError struct {
	Name       string
	Constraint string
	Available  []string
}

func (e *NoMatchError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no readable version of %s (metadata format must match %s)", e.Name, config.MetadataFormatConstraint)
	}
	return fmt.Sprintf("no version of %s matches %q (available: %s)", e.Name, e.Constraint, strings.Join(e.Available, ", "))
}

// Record is one exported crate version.
type Record struct {
	ID         uuid.UUID
	Name       string
	Version    string
	Format     string
	Source     string
	ExportedAt time.Time

	// Items is nil in listings.
	Items *itemtree.Items
}

// Store is a crate metadata database.
type Store struct {
	db   *sql.DB
	path string
}

var _ itemtree.CrateResolver = (*Store)(nil)

// Open opens or creates the store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store %s: %w", path, err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing metadata store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

// Put inserts r, replacing any record with the same name and version.
// A zero ID or format is filled in.
func (s *Store) Put(ctx context.Context, r *Record) error {
	if _, err := semver.NewVersion(r.Version); err != nil {
		return fmt.Errorf("crate %s: invalid version %q: %w", r.Name, r.Version, err)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Format == "" {
		r.Format = config.MetadataFormat
	}
	if r.ExportedAt.IsZero() {
		r.ExportedAt = time.Now()
	}
	items := r.Items
	if items == nil {
		items = &itemtree.Items{}
	}
	payload, err := items.Encode()
	if err != nil {
		return fmt.Errorf("encoding crate %s: %w", r.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crates (id, name, version, format, source, exported_at, items)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, version) DO UPDATE SET
			id = excluded.id,
			format = excluded.format,
			source = excluded.source,
			exported_at = excluded.exported_at,
			items = excluded.items`,
		r.ID.String(), r.Name, r.Version, r.Format, r.Source, r.ExportedAt.Unix(), payload)
	if err != nil {
		return fmt.Errorf("storing crate %s %s: %w", r.Name, r.Version, err)
	}
	return nil
}

// Export stores the items of u under its crate name and version. Goals
// are not part of the metadata.
func (s *Store) Export(ctx context.Context, u *itemtree.Unit) (*Record, error) {
	if u.Version == "" {
		return nil, fmt.Errorf("%s: crate %s has no version to export", u.File, u.Crate)
	}
	items := u.Items
	r := &Record{Name: u.Crate, Version: u.Version, Source: u.File, Items: &items}
	if err := s.Put(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveCrate implements itemtree.CrateResolver: the newest readable
// version of name matching constraint. An empty constraint matches any
// version.
func (s *Store) ResolveCrate(ctx context.Context, name, constraint string) (string, *itemtree.Items, error) {
	con, err := parseConstraint(constraint)
	if err != nil {
		return "", nil, fmt.Errorf("crate %s: invalid version constraint %q: %w", name, constraint, err)
	}
	formats, err := semver.NewConstraint(config.MetadataFormatConstraint)
	if err != nil {
		return "", nil, err
	}

	records, err := s.query(ctx, `WHERE name = ?`, name)
	if err != nil {
		return "", nil, err
	}
	if len(records) == 0 {
		return "", nil, fmt.Errorf("%s: %w", name, ErrCrateNotFound)
	}

	miss := &NoMatchError{Name: name, Constraint: constraint}
	for _, r := range records {
		fv, err := semver.NewVersion(r.Format)
		if err != nil || !formats.Check(fv) {
			continue
		}
		miss.Available = append(miss.Available, r.Version)
		if !con.Check(semver.MustParse(r.Version)) {
			continue
		}
		items, err := s.items(ctx, r.ID)
		if err != nil {
			return "", nil, err
		}
		return r.Version, items, nil
	}
	return "", nil, miss
}

// List returns every stored record without items, by name and then
// newest version first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	return s.query(ctx, "")
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, version, format, source, exported_at FROM crates `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying metadata store: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			r  Record
			id string
			at int64
		)
		if err := rows.Scan(&id, &r.Name, &r.Version, &r.Format, &r.Source, &at); err != nil {
			return nil, fmt.Errorf("reading metadata store: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("crate %s %s: corrupt id %q: %w", r.Name, r.Version, id, err)
		}
		if _, err := semver.NewVersion(r.Version); err != nil {
			continue
		}
		r.ExportedAt = time.Unix(at, 0)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata store: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return semver.MustParse(out[i].Version).GreaterThan(semver.MustParse(out[j].Version))
	})
	return out, nil
}

func (s *Store) items(ctx context.Context, id uuid.UUID) (*itemtree.Items, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT items FROM crates WHERE id = ?`, id.String()).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("loading crate %s: %w", id, err)
	}
	return itemtree.DecodeItems(payload)
}

func parseConstraint(expr string) (*semver.Constraints, error) {
	if strings.TrimSpace(expr) == "" {
		return semver.NewConstraint(">=0.0.0")
	}
	return semver.NewConstraint(expr)
}
