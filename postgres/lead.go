package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/pkg/database"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const checkViolation = "23514"

const leadColumns = `id, name, address, city, state, zip, owner, images, status, notes, user_id, version, created_at, updated_at`

// imageList maps the JSONB images column. A NULL column scans as an empty
// list.
type imageList []string

func (il *imageList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*il = imageList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("images: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*il = out
	return nil
}

func (il imageList) Value() (driver.Value, error) {
	if il == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(il))
}

type leadRow struct {
	ID        int64     `db:"id"`
	Name      *string   `db:"name"`
	Address   string    `db:"address"`
	City      string    `db:"city"`
	State     string    `db:"state"`
	Zip       string    `db:"zip"`
	Owner     *string   `db:"owner"`
	Images    imageList `db:"images"`
	Status    string    `db:"status"`
	Notes     *string   `db:"notes"`
	UserID    *string   `db:"user_id"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r leadRow) toLead() leadtrack.Lead {
	l := leadtrack.Lead{
		ID:        r.ID,
		Name:      r.Name,
		Address:   r.Address,
		City:      r.City,
		State:     r.State,
		Zip:       r.Zip,
		Owner:     r.Owner,
		Images:    []string(r.Images),
		Status:    leadtrack.Status(r.Status),
		Notes:     r.Notes,
		UserID:    r.UserID,
		Version:   r.Version,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	l.Normalize()
	return l
}

type LeadService struct {
	db *sqlx.DB
}

func NewLeadService(db *sqlx.DB) *LeadService {
	return &LeadService{
		db: db,
	}
}

func (ls *LeadService) Create(ctx context.Context, nl leadtrack.NewLead) (leadtrack.Lead, error) {
	status, err := leadtrack.ParseStatus(nl.Status)
	if err != nil {
		return leadtrack.Lead{}, err
	}

	query := `
	INSERT INTO leads (
		name, address, city, state, zip, owner, images, status, notes, user_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	) RETURNING ` + leadColumns

	var row leadRow
	err = ls.db.QueryRowxContext(ctx, query,
		nl.Name,
		nl.Address,
		nl.City,
		nl.State,
		nl.Zip,
		nl.Owner,
		imageList(nl.Images),
		string(status),
		nl.Notes,
		nl.UserID,
	).StructScan(&row)
	if err != nil {
		return leadtrack.Lead{}, translate(err)
	}

	return row.toLead(), nil
}

func (ls *LeadService) List(ctx context.Context, filter leadtrack.ListFilter) ([]leadtrack.Lead, error) {
	var (
		b    strings.Builder
		args []interface{}
	)

	b.WriteString(`SELECT ` + leadColumns + ` FROM leads`)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		fmt.Fprintf(&b, ` WHERE user_id = $%d`, len(args))
	}
	b.WriteString(` ORDER BY id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}

	var rows []leadRow
	if err := ls.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, err
	}

	leads := make([]leadtrack.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.toLead())
	}
	return leads, nil
}

func (ls *LeadService) GetByID(ctx context.Context, id int64) (leadtrack.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	var row leadRow
	if err := ls.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leadtrack.Lead{}, leadtrack.ErrLeadNotFound
		}
		return leadtrack.Lead{}, err
	}

	return row.toLead(), nil
}

// Update applies patch inside a transaction holding the row lock, so the
// version check and the write see the same row.
func (ls *LeadService) Update(ctx context.Context, id int64, patch leadtrack.LeadPatch) (leadtrack.Lead, error) {
	var updated leadRow

	err := database.WithinTran(ctx, ls.db, func(tx *sqlx.Tx) error {
		var current leadRow
		err := tx.GetContext(ctx, &current, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return leadtrack.ErrLeadNotFound
			}
			return err
		}

		if patch.Version != nil && *patch.Version != current.Version {
			return leadtrack.ErrVersionConflict
		}

		lead := current.toLead()
		if err := patch.Apply(&lead); err != nil {
			return err
		}

		query := `
		UPDATE leads SET
			name = $1, address = $2, city = $3, state = $4, zip = $5, owner = $6,
			images = $7, status = $8, notes = $9,
			version = version + 1, updated_at = now()
		WHERE id = $10
		RETURNING ` + leadColumns

		err = tx.QueryRowxContext(ctx, query,
			lead.Name,
			lead.Address,
			lead.City,
			lead.State,
			lead.Zip,
			lead.Owner,
			imageList(lead.Images),
			string(lead.Status),
			lead.Notes,
			id,
		).StructScan(&updated)
		return translate(err)
	})
	if err != nil {
		return leadtrack.Lead{}, err
	}

	return updated.toLead(), nil
}

func (ls *LeadService) Delete(ctx context.Context, id int64) (leadtrack.Lead, error) {
	query := `DELETE FROM leads WHERE id = $1 RETURNING ` + leadColumns

	var row leadRow
	if err := ls.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leadtrack.Lead{}, leadtrack.ErrLeadNotFound
		}
		return leadtrack.Lead{}, err
	}

	return row.toLead(), nil
}

func (ls *LeadService) CountByStatus(ctx context.Context) (map[leadtrack.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, count(*) AS count FROM leads GROUP BY status`
	if err := ls.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	counts := make(map[leadtrack.Status]int, len(rows))
	for _, r := range rows {
		counts[leadtrack.Status(r.Status)] = r.Count
	}
	return counts, nil
}

func (ls *LeadService) ImageReferenced(ctx context.Context, url string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM leads WHERE images @> jsonb_build_array($1::text))`

	var found bool
	if err := ls.db.GetContext(ctx, &found, query, url); err != nil {
		return false, err
	}
	return found, nil
}

func translate(err error) error {
	var pqerr *pq.Error
	if errors.As(err, &pqerr) && pqerr.Code == checkViolation {
		return leadtrack.ErrInvalidStatus
	}
	return err
}
