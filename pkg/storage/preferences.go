package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a preference key has never been set.
var ErrNotFound = errors.New("not found")

var validate = validator.New()

// SetPreference stores an opaque value under key.
func (d *DB) SetPreference(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("empty preference key")
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO preferences(key, value, updated_at) VALUES(?,?,CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

// GetPreference returns the value stored under key or ErrNotFound.
func (d *DB) GetPreference(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *DB) DeletePreference(ctx context.Context, key string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key)
	return err
}

// Theme returns the stored theme, ThemeSystem when unset.
func (d *DB) Theme(ctx context.Context) (Theme, error) {
	v, err := d.GetPreference(ctx, keyTheme)
	if errors.Is(err, ErrNotFound) {
		return ThemeSystem, nil
	}
	if err != nil {
		return "", err
	}
	return ParseTheme(string(v))
}

func (d *DB) SetTheme(ctx context.Context, t Theme) error {
	t, err := ParseTheme(string(t))
	if err != nil {
		return err
	}
	return d.SetPreference(ctx, keyTheme, []byte(t))
}

// User returns the stored profile or ErrNotFound.
func (d *DB) User(ctx context.Context) (*User, error) {
	v, err := d.GetPreference(ctx, keyUser)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, fmt.Errorf("decode stored user: %w", err)
	}
	return &u, nil
}

// SetUser validates and stores u. An empty ID is assigned a new UUID.
func (d *DB) SetUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := ValidateUser(u); err != nil {
		return nil, err
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	if err := d.SetPreference(ctx, keyUser, b); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser signs the user out by removing the stored profile. Other
// preferences are kept.
func (d *DB) DeleteUser(ctx context.Context) error {
	return d.DeletePreference(ctx, keyUser)
}

// ValidateUser reports the first invalid field of u in a readable form.
func ValidateUser(u User) error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("invalid user: %s is required", fe.Field())
		case "email":
			return fmt.Errorf("invalid user: %q is not a valid email address", fe.Value())
		default:
			return fmt.Errorf("invalid user: %s failed %s", fe.Field(), fe.Tag())
		}
	}
	return err
}
