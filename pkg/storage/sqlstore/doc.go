// Package sqlstore implements the pantry stores on database/sql.
//
// The same queries run on PostgreSQL (lib/pq) and SQLite (go-sqlite3); only
// the schema differs per dialect and is applied by Store.Migrate.
//
// Besides the relational stores the package carries the pieces that sit next
// to the database in a deployment:
//
//   - CachedTokenStore: expirable LRU plus optional Redis in front of token lookups
//   - NewRedisClient: shared Redis connection for the cache and rate limiting
//   - S3ImageStore: storage.ImageStore on an S3 compatible bucket
//
// Basic usage:
//
//	store, err := sqlstore.Open(cfg)
//	if err != nil {
//		return err
//	}
//	if _, err := store.Migrate(ctx); err != nil {
//		return err
//	}
//	recipes := store.Recipes()
package sqlstore
