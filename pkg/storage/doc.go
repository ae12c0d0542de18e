// Package storage defines the persistence contracts shared by the API layer and
// its backends.
//
// # Overview
//
// Relational data (users, tokens, tags, ingredients, recipes) lives in
// pkg/storage/sqlstore, which speaks to PostgreSQL in production and SQLite for
// local development. This package holds what both sides agree on:
//
//   - Config: database, image storage, Redis and cache settings
//   - ErrNotFound / ErrConflict: sentinel errors compared with errors.Is
//   - ImageStore: where uploaded recipe images go
//
// # Image Storage
//
// Two ImageStore implementations exist:
//
//	fs, err := storage.NewFileSystemImageStore("/vol/web/media", "/media/")
//	s3, err := sqlstore.NewS3ImageStore(ctx, cfg)
//
// The filesystem store writes below its root and is served by the API under
// MediaURL. The S3 store writes to a bucket and returns bucket URLs.
//
// # Related Packages
//
//   - pkg/storage/sqlstore: SQL stores, token cache, S3 image store
//   - pkg/api: handlers consuming these contracts
package storage
