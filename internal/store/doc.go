// Package store provides persistent storage for trowel.
//
// # Architecture
//
// The server depends on the Store interface, which is composed of three
// narrower interfaces:
//
//   - UserStore: credentials (create, lookup by email, operator delete)
//   - CatalogStore: the shared materials catalog
//   - ProjectStore: saved project calculations, scoped per user
//
// Three implementations exist:
//
//   - SQLiteStore: modernc.org/sqlite, the default backend
//   - MongoStore: MongoDB via the official driver
//   - MockStore: in-memory, for tests
//
// # Email Uniqueness
//
// Emails are normalized with NormalizeEmail and must be unique. Every backend
// enforces this itself (a UNIQUE column, a unique index, or a check-and-insert
// under one mutex) and reports ErrEmailTaken. Callers must not rely on a
// lookup before insert, which races under concurrent signups.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrEmailTaken: duplicate email on CreateUser
//   - ErrUnavailable: the database cannot be reached (wrapped with the cause)
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests, NewSQLiteStore(":memory:") or a file in
// t.TempDir() for integration tests. MongoStore tests need
// TROWEL_TEST_MONGO_URI.
package store
