package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/yourusername/youpick/internal/config"
	"github.com/yourusername/youpick/internal/storage"
)

const pgUniqueViolation = "23505"

// SQLRepository は database/sql 上の Repository 実装です。
// $N プレースホルダーは pgx と modernc.org/sqlite の両方で使えます。
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository は SQLRepository を作成します。
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create はユーザーを1件挿入してコミットします。
// 一意制約違反の場合はロールバックして ErrUsernameTaken を返します。
func (r *SQLRepository) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	user := &User{Username: username, Password: passwordHash}

	err := storage.WithTx(ctx, r.db, nil, func(ctx context.Context, tx storage.DBTX) error {
		query :=
			`INSERT INTO users (username, password)
			 VALUES ($1, $2)
			 RETURNING id`
		return tx.QueryRowContext(ctx, query, username, passwordHash).Scan(&user.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByUsername はユーザー名の完全一致で1件取得します。
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query :=
		`SELECT id, username, password FROM users
		 WHERE username = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// GetByID は主キーで1件取得します。
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query :=
		`SELECT id, username, password FROM users
		 WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLRepository) scanOne(row *sql.Row) (*User, error) {
	user := &User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		// 拡張エラーコードが無効な接続では一次コードしか返らない
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// EnsureSchema は users テーブルが無ければ作成します。
// バージョン管理は行わず、起動時に冪等に実行する前提です。
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	var ddl string
	switch driver {
	case config.DriverPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS users (
			id       BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL
		)`
	case config.DriverSQLite:
		ddl = `CREATE TABLE IF NOT EXISTS users (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL
		)`
	default:
		return fmt.Errorf("unsupported database driver: %q", driver)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
