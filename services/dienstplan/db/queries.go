package db

import (
	"context"
	"database/sql"
)

type Queries struct {
	db *sql.DB
}

func New(database *sql.DB) *Queries {
	return &Queries{db: database}
}

// Login is the persisted client state: the user record plus the
// opaque portal cookie so a session can be restored across restarts.
// Passwords are never stored.
type Login struct {
	Username      string
	Server        string
	Token         string
	Cookie        string
	EstablishedAt int64
	LastLogin     string
}

func (q *Queries) SaveLogin(ctx context.Context, login Login) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO login (username, server, token, cookie, established_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			server = excluded.server,
			token = excluded.token,
			cookie = excluded.cookie,
			established_at = excluded.established_at,
			last_login = excluded.last_login
	`, login.Username, login.Server, login.Token, login.Cookie, login.EstablishedAt, login.LastLogin)
	return err
}

// GetLogin returns the most recent login record, or sql.ErrNoRows.
func (q *Queries) GetLogin(ctx context.Context) (Login, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT username, server, token, cookie, established_at, last_login
		FROM login
		ORDER BY last_login DESC
		LIMIT 1
	`)

	var login Login
	err := row.Scan(
		&login.Username,
		&login.Server,
		&login.Token,
		&login.Cookie,
		&login.EstablishedAt,
		&login.LastLogin,
	)
	if err != nil {
		return Login{}, err
	}
	return login, nil
}

func (q *Queries) DeleteLogins(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM login`)
	return err
}
