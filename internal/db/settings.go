package db

import (
	"context"
	"strconv"
)

func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	defaults := Settings{
		PruneLower: 0,
		PruneUpper: 65535,
	}
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT key, CAST(value AS TEXT) AS value
		FROM settings
	`); err != nil {
		return Settings{}, err
	}
	settings := defaults
	for _, row := range rows {
		switch row.Key {
		case "prune_lower":
			if v, err := strconv.ParseUint(row.Value, 10, 16); err == nil {
				settings.PruneLower = uint16(v)
			}
		case "prune_upper":
			if v, err := strconv.ParseUint(row.Value, 10, 16); err == nil {
				settings.PruneUpper = uint16(v)
			}
		case "default_book":
			settings.DefaultBook = row.Value
		}
	}
	return settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings Settings) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err = tx.ExecContext(ctx, upsert, "prune_lower", settings.PruneLower); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, upsert, "prune_upper", settings.PruneUpper); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, upsert, "default_book", settings.DefaultBook); err != nil {
		return err
	}

	return tx.Commit()
}
