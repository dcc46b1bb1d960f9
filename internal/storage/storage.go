package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"telegram-habit-streaks/internal/models"
	"telegram-habit-streaks/internal/streak"
)

//go:embed schema.sql
var ddl embed.FS

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ClearData removes a user and everything they authored.
func (d *DB) ClearData(ctx context.Context, id int64) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, tbl := range []string{"reflections", "users"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE telegram_id = ?", tbl), id,
		); err != nil {
			return fmt.Errorf("clear %s: %w", tbl, err)
		}
	}
	return tx.Commit()
}

// ---------- users -----------------------------------------------------------

const userColumns = `telegram_id, handle, habit, location, time_period, category,
	reflection_consent, last_done, streak, points, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanUser(row scanner) (*models.User, error) {
	var (
		u        models.User
		lastDone sql.NullString
		encoded  string
	)
	if err := row.Scan(&u.ID, &u.Handle, &u.Habit, &u.Location, &u.TimePeriod, &u.Category,
		&u.ReflectionConsent, &lastDone, &encoded, &u.Points, &u.CreatedAt); err != nil {
		return nil, err
	}
	s, err := streak.ParseStreak(encoded)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Streak = s
	u.LastDone = lastDone.String
	return &u, nil
}

func (d *DB) AddUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	_, err := d.ExecContext(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Handle, u.Habit, u.Location, u.TimePeriod, u.Category,
		u.ReflectionConsent, nullable(u.LastDone), u.Streak.String(), u.Points, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("add user %d: %w", u.ID, err)
	}
	return nil
}

func (d *DB) IsRegistered(ctx context.Context, id int64) (bool, error) {
	var c int
	err := d.QueryRowContext(ctx, `SELECT 1 FROM users WHERE telegram_id = ?`, id).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// SaveUser writes the engine-owned fields of u.
func (d *DB) SaveUser(ctx context.Context, u *models.User) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE users SET streak = ?, last_done = ?, points = ?
        WHERE telegram_id = ?`,
		u.Streak.String(), nullable(u.LastDone), u.Points, u.ID)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return fmt.Errorf("save user %d: %w", u.ID, sql.ErrNoRows)
	}
	return tx.Commit()
}

// UpdateHabit changes the non-empty habit fields.
func (d *DB) UpdateHabit(ctx context.Context, id int64, habit, location, timePeriod string) error {
	_, err := d.ExecContext(ctx, `
        UPDATE users SET
            habit       = COALESCE(NULLIF(?, ''), habit),
            location    = COALESCE(NULLIF(?, ''), location),
            time_period = COALESCE(NULLIF(?, ''), time_period)
        WHERE telegram_id = ?`, habit, location, timePeriod, id)
	if err != nil {
		return fmt.Errorf("update habit %d: %w", id, err)
	}
	return nil
}

func (d *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	return d.ids(ctx, `SELECT telegram_id FROM users ORDER BY telegram_id`)
}

// ListUsersStreakBreaking returns users not credited on today.
// Unparseable dates count as never completed.
func (d *DB) ListUsersStreakBreaking(ctx context.Context, today time.Time) ([]int64, error) {
	return d.ids(ctx, `
        SELECT telegram_id FROM users
        WHERE date(last_done) IS NULL OR date(last_done) <> ?
        ORDER BY telegram_id`, today.Format(streak.DayLayout))
}

// ListUsersStreakBroken returns users whose last completion is more than
// two days before today.
func (d *DB) ListUsersStreakBroken(ctx context.Context, today time.Time) ([]int64, error) {
	cutoff := today.AddDate(0, 0, -2).Format(streak.DayLayout)
	return d.ids(ctx, `
        SELECT telegram_id FROM users
        WHERE date(last_done) IS NULL OR date(last_done) < ?
        ORDER BY telegram_id`, cutoff)
}

func (d *DB) ListReflectionRecipients(ctx context.Context) ([]int64, error) {
	return d.ids(ctx, `
        SELECT telegram_id FROM users
        WHERE reflection_consent = 1
        ORDER BY telegram_id`)
}

func (d *DB) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT handle, points FROM users
        ORDER BY points DESC, telegram_id
        LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var res []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Handle, &e.Points); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (d *DB) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// ---------- reflections -----------------------------------------------------

func (d *DB) AddReflection(ctx context.Context, r *models.Reflection) error {
	res, err := d.ExecContext(ctx, `
        INSERT INTO reflections (telegram_id, text, created_at) VALUES (?,?,?)`,
		r.AuthorID, r.Text, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("add reflection: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// RandomReflection picks a reflection by a consenting author other than
// excludeUserID. It returns nil when there is none.
func (d *DB) RandomReflection(ctx context.Context, excludeUserID int64) (*models.Reflection, error) {
	var r models.Reflection
	err := d.QueryRowContext(ctx, `
        SELECT r.id, r.telegram_id, r.text, r.created_at
        FROM reflections r
        JOIN users u ON u.telegram_id = r.telegram_id
        WHERE r.telegram_id <> ? AND u.reflection_consent = 1
        ORDER BY RANDOM()
        LIMIT 1`, excludeUserID,
	).Scan(&r.ID, &r.AuthorID, &r.Text, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("random reflection: %w", err)
	}
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
