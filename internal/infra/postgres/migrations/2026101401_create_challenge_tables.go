package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	up := mustSQL("challenges_up.sql")
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, up)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS challenge_answers, challenge_participants, challenges`)
			return err
		},
	)
}
