// Package store caches parsed MARC records in SQLite.
//
// Each row is keyed by (source, record_id) and holds the record as
// MARC-in-JSON together with the serialization it was read from, so a
// cached record can be written back out in its original format.
//
// # Identity and Ordering
//
//   - Rows get a UUIDv7 id on first insert. Replacing a record keeps the id
//     and created_at and advances updated_at.
//   - List orders by source, then record_id, both COLLATE BINARY, so output
//     does not depend on insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite has a single writer
package store
