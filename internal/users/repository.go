// Package users はユーザーアカウントの永続化を担います。
package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound は該当するユーザーが存在しないことを表します。
	ErrNotFound = errors.New("user not found")
	// ErrUsernameTaken はユーザー名の一意制約違反を表します。
	ErrUsernameTaken = errors.New("username already registered")
)

// User は users テーブルの1行です。Password には bcrypt ハッシュが入ります。
type User struct {
	ID       int64
	Username string
	Password string
}

// Repository はユーザーの作成と参照を提供します。
type Repository interface {
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}
