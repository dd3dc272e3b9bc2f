package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/constraints.sql
var constraintsSQL string

type migrationStep struct {
	name string
	run  func(tx *gorm.DB) error
}

// migrationSteps creates the schema, lets gorm shape the tables, then adds
// the cascading foreign keys, the fingerprint check and the history index
// gorm cannot express.
func migrationSteps() []migrationStep {
	return []migrationStep{
		{name: "schema", run: execScript(schemaSQL)},
		{name: "tables", run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(autoMigrateModels()...)
		}},
		{name: "constraints", run: execScript(constraintsSQL)},
	}
}

func execScript(script string) func(tx *gorm.DB) error {
	script = strings.TrimSpace(script)
	return func(tx *gorm.DB) error {
		if script == "" {
			return nil
		}
		return tx.Exec(script).Error
	}
}

// migrate applies every step in one transaction so a failed start leaves
// the previous schema untouched.
func migrate(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range migrationSteps() {
			if err := step.run(tx); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
}
