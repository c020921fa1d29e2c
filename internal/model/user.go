package model

import (
	"context"
	"errors"
)

type User struct {
	Username string
	Email    string
	IsActive bool
}

var ErrUserNotFound = errors.New("user not found")

// ErrNotPermitted is returned whenever the acting user is not a member
// of the group guarding the requested operation.
var ErrNotPermitted = errors.New("user is not permitted to perform this action")

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	CreateGroup(ctx context.Context, name string) error
	AddUserToGroup(ctx context.Context, username, group string) error
	// IsMember reports whether the user belongs to the named group.
	// Membership is the sole permission primitive.
	IsMember(ctx context.Context, username, group string) (bool, error)
	// FetchActiveGroupMembers returns active members of the group that
	// have a non-empty email address.
	FetchActiveGroupMembers(ctx context.Context, group string) ([]User, error)
}
