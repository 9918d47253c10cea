package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// The catalog tables may belong to another service, so rolling back leaves them.
func init() {
	Migrations.MustRegister(
		exec("0001_catalog.sql"),
		func(context.Context, *bun.DB) error { return nil },
	)
}
