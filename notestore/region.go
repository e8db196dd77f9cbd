package notestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/noteshot/capture"
)

// SaveRegion persists r as the last selected region.
func (s *Store) SaveRegion(ctx context.Context, r capture.Region) error {
	body, err := json.Marshal(r)
	if err != nil {
		return capture.Errorf(capture.KindPersistenceFailure, "save_region", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slots (key, body, version, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, version = slots.version + 1, updated_at = excluded.updated_at`,
		lastRegionKey, string(body), s.now().Unix())
	if err != nil {
		return capture.Errorf(capture.KindPersistenceFailure, "save_region", err)
	}
	return nil
}

// LastRegion returns the last saved region, if any.
func (s *Store) LastRegion(ctx context.Context) (capture.Region, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM slots WHERE key = ?`, lastRegionKey).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return capture.Region{}, false, nil
	}
	if err != nil {
		return capture.Region{}, false, capture.Errorf(capture.KindPersistenceFailure, "last_region", err)
	}
	var r capture.Region
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return capture.Region{}, false, capture.Errorf(capture.KindPersistenceFailure, "last_region",
			fmt.Errorf("malformed %s slot: %w", lastRegionKey, err))
	}
	return r, true, nil
}
