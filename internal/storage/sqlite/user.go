package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard-app/taskboard/internal/model"
)

type UserStorage struct {
	db *sql.DB
}

func NewUserStorage(db *sql.DB) *UserStorage {
	return &UserStorage{db: db}
}

func (s *UserStorage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT username, email, is_active FROM users WHERE username = ?`

	var user model.User
	err := s.db.QueryRowContext(ctx, q, username).Scan(
		&user.Username,
		&user.Email,
		&user.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("could not get user: %w", err)
	}
	return &user, nil
}

func (s *UserStorage) CreateUser(ctx context.Context, user *model.User) error {
	const q = `INSERT INTO users (username, email, is_active) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, user.Username, user.Email, user.IsActive)
	if err != nil {
		return fmt.Errorf("could not create user: %w", err)
	}
	return nil
}

func (s *UserStorage) CreateGroup(ctx context.Context, name string) error {
	const q = `INSERT INTO groups (name) VALUES (?)`
	_, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("could not create group: %w", err)
	}
	return nil
}

func (s *UserStorage) AddUserToGroup(ctx context.Context, username, group string) error {
	const q = `INSERT INTO user_groups (username, group_name) VALUES (?, ?)`
	_, err := s.db.ExecContext(ctx, q, username, group)
	if err != nil {
		return fmt.Errorf("could not add user to group: %w", err)
	}
	return nil
}

func (s *UserStorage) IsMember(ctx context.Context, username, group string) (bool, error) {
	const q = `SELECT COUNT(*) FROM user_groups WHERE username = ? AND group_name = ?`
	var count int
	err := s.db.QueryRowContext(ctx, q, username, group).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("could not check membership: %w", err)
	}
	return count > 0, nil
}

// FetchActiveGroupMembers returns active group members with a non-empty
// email, the audience for completion notifications.
func (s *UserStorage) FetchActiveGroupMembers(ctx context.Context, group string) ([]model.User, error) {
	const q = `SELECT u.username, u.email, u.is_active FROM users u
	JOIN user_groups ug ON u.username = ug.username
	WHERE ug.group_name = ? AND u.is_active = 1 AND u.email != ''
	ORDER BY u.username`

	rows, err := s.db.QueryContext(ctx, q, group)
	if err != nil {
		return nil, fmt.Errorf("could not fetch group members: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.Username, &user.Email, &user.IsActive); err != nil {
			return nil, fmt.Errorf("could not scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate users: %w", err)
	}
	return users, nil
}
