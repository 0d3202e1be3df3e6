package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/entitlement/models"
)

func init() {
	Migrations.MustRegister(up_20260105000100, down_20260105000100)
}

// up_20260105000100 initializes the entitlement schema
func up_20260105000100(ctx context.Context, db *bun.DB) error {
	// 1. users
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	// 2. user_permissions
	fmt.Print(" [up] creating user_permissions table...")
	q := db.NewCreateTable().
		Model((*models.UserEntitlement)(nil)).
		IfNotExists()
	if IsSQLite(db) {
		q = q.ForeignKey(`(user_id) REFERENCES users(id)`)
	}
	if _, err = q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create user_permissions table: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE user_permissions
			ADD CONSTRAINT fk_user_permissions_user FOREIGN KEY (user_id) REFERENCES users(id),
			ADD CONSTRAINT chk_user_permissions_type CHECK (permission_type IN ('group', 'access')),
			ADD CONSTRAINT chk_user_permissions_status CHECK (status IN ('pending', 'active', 'rejected', 'revoked'))`)
		if err != nil {
			return fmt.Errorf("failed to add user_permissions constraints: %w", err)
		}
	}
	// One row per (user, kind, item); request_id uniqueness comes from the
	// column constraint.
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_permissions_triple
		ON user_permissions(user_id, permission_type, item_id)`)
	if err != nil {
		return fmt.Errorf("failed to create unique triple index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_permissions_user_status
		ON user_permissions(user_id, status)`)
	if err != nil {
		return fmt.Errorf("failed to create user/status index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260105000100 drops the entitlement schema
func down_20260105000100(ctx context.Context, db *bun.DB) error {
	for _, table := range []string{"user_permissions", "users"} {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
