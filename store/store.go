// Package store is the SQLite status store filter SQL fragments run against.
// Queries alias the status table as `status`, user, favorite, retweet and
// mention data is reached through subselects keyed on its columns.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	u "github.com/araddon/gou"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/IroiKanta/StarryEyes/model"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS User (
		Id INTEGER PRIMARY KEY,
		ScreenName TEXT NOT NULL,
		Name TEXT NOT NULL DEFAULT '',
		Location TEXT NULL,
		IsProtected INTEGER NOT NULL DEFAULT 0,
		IsVerified INTEGER NOT NULL DEFAULT 0,
		IsTranslator INTEGER NOT NULL DEFAULT 0,
		IsContributorsEnabled INTEGER NOT NULL DEFAULT 0,
		IsGeoEnabled INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS Status (
		Id INTEGER PRIMARY KEY,
		BaseId INTEGER NOT NULL,
		UserId INTEGER NOT NULL,
		BaseUserId INTEGER NOT NULL,
		RetweeterId INTEGER NULL,
		RetweetOriginalId INTEGER NULL,
		Text TEXT NOT NULL,
		Source TEXT NOT NULL,
		CreatedAt INTEGER NOT NULL,
		InReplyToStatusId INTEGER NULL
	)`,
	`CREATE TABLE IF NOT EXISTS Favorite (StatusId INTEGER NOT NULL, UserId INTEGER NOT NULL, PRIMARY KEY (StatusId, UserId))`,
	`CREATE TABLE IF NOT EXISTS Retweet (StatusId INTEGER NOT NULL, UserId INTEGER NOT NULL, PRIMARY KEY (StatusId, UserId))`,
	`CREATE TABLE IF NOT EXISTS Mention (StatusId INTEGER NOT NULL, UserId INTEGER NOT NULL, PRIMARY KEY (StatusId, UserId))`,
	// LIKE must honour case, case-insensitive matching lowers both sides
	`PRAGMA case_sensitive_like = ON`,
}

// StatusRow is a status as returned by Search.
type StatusRow struct {
	ID         int64  `db:"Id"`
	Text       string `db:"Text"`
	ScreenName string `db:"ScreenName"`
	CreatedAt  int64  `db:"CreatedAt"`
}

// Store wraps a single SQLite connection.
type Store struct {
	db      *sqlx.DB
	builder squirrel.StatementBuilderType
}

// Open opens or creates the database at path, see Memory.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// pragmas and in-memory databases are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: schema: %w", err)
		}
	}
	u.Debugf("opened store %q", path)
	return &Store{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put writes statuses along with their users, a retweet also writes its
// original. Nothing is written if any status fails model validation.
func (s *Store) Put(ctx context.Context, statuses ...*model.Status) error {
	for _, st := range statuses {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("store: put: %w", err)
		}
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, st := range statuses {
		if st.RetweetedStatus != nil {
			if err := s.putStatus(ctx, tx, st.RetweetedStatus); err != nil {
				return err
			}
		}
		if err := s.putStatus(ctx, tx, st); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) putStatus(ctx context.Context, tx *sqlx.Tx, st *model.Status) error {
	orig := st.Original()
	if err := s.putUser(ctx, tx, st.User); err != nil {
		return err
	}
	if orig != st {
		if err := s.putUser(ctx, tx, orig.User); err != nil {
			return err
		}
	}

	var retweeter, retweetOf, inReplyTo sql.NullInt64
	if st.IsRetweet() {
		retweeter = sql.NullInt64{Int64: st.User.ID, Valid: true}
		retweetOf = sql.NullInt64{Int64: orig.ID, Valid: true}
	}
	if orig.InReplyToStatusID != 0 {
		inReplyTo = sql.NullInt64{Int64: orig.InReplyToStatusID, Valid: true}
	}

	q, args, err := s.builder.Replace("Status").
		Columns("Id", "BaseId", "UserId", "BaseUserId", "RetweeterId", "RetweetOriginalId",
			"Text", "Source", "CreatedAt", "InReplyToStatusId").
		Values(st.ID, orig.ID, st.User.ID, orig.User.ID, retweeter, retweetOf,
			orig.Text, orig.ClientName(), st.CreatedAt.Unix(), inReplyTo).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store: put status %d: %w", st.ID, err)
	}

	if orig != st {
		return nil
	}
	for table, ids := range map[string][]int64{
		"Favorite": st.FavoritedUsers,
		"Retweet":  st.RetweetedUsers,
		"Mention":  st.MentionedUsers,
	} {
		if err := s.putSet(ctx, tx, table, st.ID, ids); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) putUser(ctx context.Context, tx *sqlx.Tx, usr *model.User) error {
	var location sql.NullString
	if usr.Location != "" {
		location = sql.NullString{String: usr.Location, Valid: true}
	}
	q, args, err := s.builder.Replace("User").
		Columns("Id", "ScreenName", "Name", "Location", "IsProtected", "IsVerified",
			"IsTranslator", "IsContributorsEnabled", "IsGeoEnabled").
		Values(usr.ID, usr.ScreenName, usr.Name, location, usr.IsProtected, usr.IsVerified,
			usr.IsTranslator, usr.IsContributorsEnabled, usr.IsGeoEnabled).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store: put user %d: %w", usr.ID, err)
	}
	return nil
}

func (s *Store) putSet(ctx context.Context, tx *sqlx.Tx, table string, statusID int64, ids []int64) error {
	q, args, err := s.builder.Delete(table).Where(squirrel.Eq{"StatusId": statusID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	ins := s.builder.Replace(table).Columns("StatusId", "UserId")
	for _, id := range ids {
		ins = ins.Values(statusID, id)
	}
	q, args, err = ins.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) selectWhere(where string, limit uint64, columns ...string) squirrel.SelectBuilder {
	sb := s.builder.Select(columns...).From("Status status").OrderBy("status.Id")
	if where != "" {
		sb = sb.Where(where)
	}
	if limit > 0 {
		sb = sb.Limit(limit)
	}
	return sb
}

// Find returns the ids of statuses matching a WHERE fragment, ascending.
// A limit of 0 is unlimited.
func (s *Store) Find(ctx context.Context, where string, limit uint64) ([]int64, error) {
	q, args, err := s.selectWhere(where, limit, "status.Id").ToSql()
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("store: find %q: %w", where, err)
	}
	return ids, nil
}

// Search is Find returning display rows.
func (s *Store) Search(ctx context.Context, where string, limit uint64) ([]StatusRow, error) {
	q, args, err := s.selectWhere(where, limit,
		"status.Id", "status.Text", "status.CreatedAt",
		"coalesce((select ScreenName from User where Id = status.UserId limit 1), '') AS ScreenName",
	).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []StatusRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("store: search %q: %w", where, err)
	}
	return rows, nil
}

// Count is the number of stored statuses.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT count(*) FROM Status")
	return n, err
}
