package db

type Settings struct {
	PruneLower  uint16 `db:"prune_lower"`
	PruneUpper  uint16 `db:"prune_upper"`
	DefaultBook string `db:"default_book"`
}

type BookInfo struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	SourcePath string `db:"source_path"`
	SavedAt    string `db:"saved_at"`
	Entries    int    `db:"entries"`
	Keys       int    `db:"keys"`
}

type EntryRow struct {
	ZobristKey int64  `db:"zobrist_key"`
	Seq        int    `db:"seq"`
	Move       uint16 `db:"move"`
	Weight     uint16 `db:"weight"`
	Learn      uint32 `db:"learn"`
}
