package notestore

// Schema holds the slot table. Each row is one JSON document; there is no
// per-record row on purpose, so every mutation is a read-modify-write of
// the whole collection.
const Schema = `
CREATE TABLE IF NOT EXISTS slots (
    key        TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    version    INTEGER NOT NULL DEFAULT 1,
    updated_at INTEGER NOT NULL
);
`

const (
	capturesKey   = "captures"
	lastRegionKey = "last_region"
)
