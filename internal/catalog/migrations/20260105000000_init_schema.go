package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/catalog/models"
)

func init() {
	Migrations.MustRegister(up_20260105000000, down_20260105000000)
}

// up_20260105000000 initializes the catalog schema
func up_20260105000000(ctx context.Context, db *bun.DB) error {
	// 1. resources
	fmt.Print(" [up] creating resources table...")
	_, err := db.NewCreateTable().
		Model((*models.Resource)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create resources table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_resources_name ON resources(name)`)
	if err != nil {
		return fmt.Errorf("failed to create index on resources.name: %w", err)
	}
	fmt.Println(" OK")

	// 2. accesses
	fmt.Print(" [up] creating accesses table...")
	_, err = db.NewCreateTable().
		Model((*models.Access)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create accesses table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_accesses_name ON accesses(name)`)
	if err != nil {
		return fmt.Errorf("failed to create index on accesses.name: %w", err)
	}
	fmt.Println(" OK")

	// 3. groups
	fmt.Print(" [up] creating groups table...")
	_, err = db.NewCreateTable().
		Model((*models.Group)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create groups table: %w", err)
	}
	fmt.Println(" OK")

	// 4. access_resources join table
	fmt.Print(" [up] creating access_resources table...")
	q := db.NewCreateTable().
		Model((*models.AccessResource)(nil)).
		IfNotExists()
	if IsSQLite(db) {
		q = q.ForeignKey(`(access_id) REFERENCES accesses(id)`)
		q = q.ForeignKey(`(resource_id) REFERENCES resources(id)`)
	}
	if _, err = q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create access_resources table: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE access_resources
			ADD CONSTRAINT fk_access_resources_access FOREIGN KEY (access_id) REFERENCES accesses(id),
			ADD CONSTRAINT fk_access_resources_resource FOREIGN KEY (resource_id) REFERENCES resources(id)`)
		if err != nil {
			return fmt.Errorf("failed to add access_resources foreign keys: %w", err)
		}
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_access_resources_resource ON access_resources(resource_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on access_resources.resource_id: %w", err)
	}
	fmt.Println(" OK")

	// 5. group_accesses join table
	fmt.Print(" [up] creating group_accesses table...")
	q = db.NewCreateTable().
		Model((*models.GroupAccess)(nil)).
		IfNotExists()
	if IsSQLite(db) {
		q = q.ForeignKey(`(group_id) REFERENCES groups(id)`)
		q = q.ForeignKey(`(access_id) REFERENCES accesses(id)`)
	}
	if _, err = q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create group_accesses table: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE group_accesses
			ADD CONSTRAINT fk_group_accesses_group FOREIGN KEY (group_id) REFERENCES groups(id),
			ADD CONSTRAINT fk_group_accesses_access FOREIGN KEY (access_id) REFERENCES accesses(id)`)
		if err != nil {
			return fmt.Errorf("failed to add group_accesses foreign keys: %w", err)
		}
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_group_accesses_access ON group_accesses(access_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on group_accesses.access_id: %w", err)
	}
	fmt.Println(" OK")

	// 6. conflicts (double-row symmetric matrix)
	fmt.Print(" [up] creating conflicts table...")
	q = db.NewCreateTable().
		Model((*models.Conflict)(nil)).
		IfNotExists()
	if IsSQLite(db) {
		q = q.ForeignKey(`(group_id1) REFERENCES groups(id)`)
		q = q.ForeignKey(`(group_id2) REFERENCES groups(id)`)
	}
	if _, err = q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create conflicts table: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE conflicts
			ADD CONSTRAINT fk_conflicts_group1 FOREIGN KEY (group_id1) REFERENCES groups(id),
			ADD CONSTRAINT fk_conflicts_group2 FOREIGN KEY (group_id2) REFERENCES groups(id),
			ADD CONSTRAINT chk_conflicts_distinct CHECK (group_id1 <> group_id2)`)
		if err != nil {
			return fmt.Errorf("failed to add conflicts constraints: %w", err)
		}
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conflicts_group2 ON conflicts(group_id2)`)
	if err != nil {
		return fmt.Errorf("failed to create index on conflicts.group_id2: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260105000000 drops the catalog schema
func down_20260105000000(ctx context.Context, db *bun.DB) error {
	for _, table := range []string{"conflicts", "group_accesses", "access_resources", "groups", "accesses", "resources"} {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
