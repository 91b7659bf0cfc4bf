package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueConstraint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"username", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"}, "users_username_key"},
		{"wrapped email", fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}), "users_email_key"},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "leaderboard_entries_user_id_fkey"}, ""},
		{"plain", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uniqueConstraint(tt.err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	for i, m := range migrations {
		if !strings.Contains(m, "IF NOT EXISTS") {
			t.Errorf("migration %d is not idempotent: %s", i, m)
		}
	}
}
