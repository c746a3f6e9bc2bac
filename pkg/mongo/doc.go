// Package mongo connects to MongoDB and exposes a collection as a
// kvstore.Store.
//
// Configuration is environment driven through Config. Connect retries the
// initial ping so the process survives a database that starts after it.
//
// # Usage
//
//	store, client, err := mongo.NewStore(ctx, cfg, "kv_items")
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(context.Background())
//
// Connection failures are wrapped in the package's sentinel errors; use
// errors.Is to test for them.
package mongo
