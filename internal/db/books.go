package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"polybook/internal/book"
)

// SaveBook stores every entry of b under name, replacing whatever was saved
// under that name before. It returns the book's row ID.
func (s *Store) SaveBook(ctx context.Context, name, sourcePath string, b *book.Book) (id int64, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("save book: empty name")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO books (name, source_path) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_path = excluded.source_path,
			saved_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
	`, name, strings.TrimSpace(sourcePath)); err != nil {
		return 0, fmt.Errorf("upsert book: %w", err)
	}
	if err = tx.GetContext(ctx, &id, `SELECT id FROM books WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("lookup book id: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM book_entries WHERE book_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear book entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO book_entries (book_id, zobrist_key, seq, move, weight, learn)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var (
		lastKey uint64
		seq     int
		first   = true
	)
	for e := range b.All() {
		if first || e.Key != lastKey {
			seq = 0
			lastKey = e.Key
			first = false
		}
		if _, err = stmt.ExecContext(ctx, id, int64(e.Key), seq, uint16(e.Move), e.Weight, e.Learn); err != nil {
			return 0, fmt.Errorf("insert book entry: %w", err)
		}
		seq++
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LoadBook rebuilds the book saved under name. It returns sql.ErrNoRows when
// no such book exists.
func (s *Store) LoadBook(ctx context.Context, name string) (*book.Book, error) {
	id, err := s.bookID(ctx, name)
	if err != nil {
		return nil, err
	}
	var rows []EntryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT zobrist_key, seq, move, weight, learn
		FROM book_entries
		WHERE book_id = ?
		ORDER BY zobrist_key ASC, seq ASC
	`, id); err != nil {
		return nil, err
	}
	b := book.New()
	for _, row := range rows {
		b.Add(row.Entry())
	}
	return b, nil
}

// EntriesByKey returns the entries of one position in a saved book, in book order.
func (s *Store) EntriesByKey(ctx context.Context, name string, key uint64) ([]book.Entry, error) {
	id, err := s.bookID(ctx, name)
	if err != nil {
		return nil, err
	}
	var rows []EntryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT zobrist_key, seq, move, weight, learn
		FROM book_entries
		WHERE book_id = ? AND zobrist_key = ?
		ORDER BY seq ASC
	`, id, int64(key)); err != nil {
		return nil, err
	}
	out := make([]book.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Entry())
	}
	return out, nil
}

// list all saved books
func (s *Store) ListBooks(ctx context.Context) ([]BookInfo, error) {
	var out []BookInfo
	err := s.db.SelectContext(ctx, &out, `
		SELECT b.id, b.name, b.source_path, b.saved_at,
			COUNT(e.zobrist_key) AS entries,
			COUNT(DISTINCT e.zobrist_key) AS keys
		FROM books b
		LEFT JOIN book_entries e ON e.book_id = b.id
		GROUP BY b.id
		ORDER BY b.name ASC
	`)
	return out, err
}

// delete a saved book and its entries
func (s *Store) DeleteBook(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) bookID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT id FROM books WHERE name = ?`, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sql.ErrNoRows
	}
	return id, err
}

func (r EntryRow) Entry() book.Entry {
	return book.Entry{
		Key:    uint64(r.ZobristKey),
		Move:   book.EncodedMove(r.Move),
		Weight: r.Weight,
		Learn:  r.Learn,
	}
}
