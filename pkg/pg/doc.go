// Package pg connects to PostgreSQL with pgx/v5 and prepares the kv_items
// schema with goose/v3 so that the database can back a kvstore.Store.
//
//	store, pool, err := pg.NewStore(ctx, cfg, "actorkit", slog.Default())
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
// Migrate accepts any fs.FS, typically an embed.FS, so the schema ships
// inside the binary. Config fields are read from the environment with
// github.com/caarlos0/env.
package pg
