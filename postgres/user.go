package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phbpx/leadtrack"
)

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Picture   string    `db:"picture"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) toUser() leadtrack.User {
	return leadtrack.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Picture:   r.Picture,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type UserService struct {
	db *sqlx.DB
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{
		db: db,
	}
}

// Upsert stores the user, refreshing the profile fields when the identity
// provider id is already known.
func (us *UserService) Upsert(ctx context.Context, u leadtrack.User) (leadtrack.User, error) {
	query := `
	INSERT INTO users (
		id, name, email, picture
	) VALUES (
		:id, :name, :email, :picture
	)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		email = EXCLUDED.email,
		picture = EXCLUDED.picture
	RETURNING id, name, email, picture, created_at`

	rows, err := sqlx.NamedQueryContext(ctx, us.db, query, userRow{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Picture: u.Picture,
	})
	if err != nil {
		return leadtrack.User{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return leadtrack.User{}, err
		}
		return leadtrack.User{}, sql.ErrNoRows
	}

	var row userRow
	if err := rows.StructScan(&row); err != nil {
		return leadtrack.User{}, err
	}
	return row.toUser(), nil
}

func (us *UserService) GetByID(ctx context.Context, id string) (leadtrack.User, error) {
	var row userRow
	err := us.db.GetContext(ctx, &row, `SELECT id, name, email, picture, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leadtrack.User{}, leadtrack.ErrUserNotFound
		}
		return leadtrack.User{}, err
	}
	return row.toUser(), nil
}
