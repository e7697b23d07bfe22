// Package storage provides the durable store behind the haredb index.
//
// A store holds two tables:
//   - key_value: one row per entry; key and value are opaque text
//     (ciphertext in secure mode, plain text otherwise)
//   - meta: secure flag, schema version, creation time, store id, driver
//     and, for secure stores, the encrypted key-check string
//
// Two drivers implement Store:
//   - bolt (default): a single BBolt file. Tables are buckets. Every commit
//     is fsynced and BBolt's copy-on-write meta pages make a torn write
//     invisible after a crash, which gives the same guarantee a write-ahead
//     log would.
//   - badger: a Badger directory. Tables are key prefixes. Writes go
//     through Badger's write-ahead log with SyncWrites, and closing does not
//     compact level 0, so the log is left for the next open to replay.
package storage
