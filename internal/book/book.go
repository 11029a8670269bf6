// Package book reads, builds and writes Polyglot opening books.
//
// A Book is an ordered multimap from a 64-bit position key to the entries
// known for that position. Within a key, entries keep insertion order and no
// two entries share the same decoded move, weight and learn value.
package book

import (
	"iter"

	"github.com/google/btree"
	"github.com/rs/zerolog"
)

const btreeDegree = 32

type bucket struct {
	key     uint64
	entries []Entry
}

func (bk *bucket) contains(d DecodedEntry) bool {
	for _, e := range bk.entries {
		if e.Decoded() == d {
			return true
		}
	}
	return false
}

func bucketLess(a, b *bucket) bool { return a.key < b.key }

// Book is not safe for concurrent use. The zero value is an empty book with a
// no-op logger.
type Book struct {
	index *btree.BTreeG[*bucket]

	// records is the file mapping the book was read from, if any.
	records Records
	log     zerolog.Logger
}

// New returns an empty book.
func New() *Book {
	return &Book{
		index: btree.NewG(btreeDegree, bucketLess),
		log:   zerolog.Nop(),
	}
}

// SetLogger sets the logger used for file and maintenance events.
func (b *Book) SetLogger(l zerolog.Logger) {
	b.log = l
}

func (b *Book) tree() *btree.BTreeG[*bucket] {
	if b.index == nil {
		b.index = btree.NewG(btreeDegree, bucketLess)
	}
	return b.index
}

func (b *Book) bucket(key uint64) (*bucket, bool) {
	return b.tree().Get(&bucket{key: key})
}

// Add inserts e unless an entry with the same decoded value already exists
// for its key. It reports whether e was inserted.
func (b *Book) Add(e Entry) bool {
	bk, ok := b.bucket(e.Key)
	if !ok {
		b.tree().ReplaceOrInsert(&bucket{key: e.Key, entries: []Entry{e}})
		return true
	}
	if bk.contains(e.Decoded()) {
		return false
	}
	bk.entries = append(bk.entries, e)
	return true
}

// AddEntry encodes the move and adds the resulting entry under key.
func (b *Book) AddEntry(key uint64, from, to Square, promo PieceKind, castling bool, weight uint16, learn uint32) bool {
	return b.Add(Entry{
		Key:    key,
		Move:   EncodeMove(from, to, promo, castling),
		Weight: weight,
		Learn:  learn,
	})
}

// Entries returns a copy of the raw entries stored for key.
func (b *Book) Entries(key uint64) ([]Entry, bool) {
	bk, ok := b.bucket(key)
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), bk.entries...), true
}

// Moves yields the decoded moves for key in insertion order. An unknown key
// yields nothing.
func (b *Book) Moves(key uint64) iter.Seq[Move] {
	return func(yield func(Move) bool) {
		bk, ok := b.bucket(key)
		if !ok {
			return
		}
		for _, e := range bk.entries {
			if !yield(e.Move.Decode()) {
				return
			}
		}
	}
}

// WeightedMoves is like Moves but also yields each entry's weight.
func (b *Book) WeightedMoves(key uint64) iter.Seq2[Move, uint16] {
	return func(yield func(Move, uint16) bool) {
		bk, ok := b.bucket(key)
		if !ok {
			return
		}
		for _, e := range bk.entries {
			if !yield(e.Move.Decode(), e.Weight) {
				return
			}
		}
	}
}

// Keys returns all position keys in ascending order.
func (b *Book) Keys() []uint64 {
	keys := make([]uint64, 0, b.tree().Len())
	b.tree().Ascend(func(bk *bucket) bool {
		keys = append(keys, bk.key)
		return true
	})
	return keys
}

// All yields every entry, keys ascending and entries in book order.
func (b *Book) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		b.tree().Ascend(func(bk *bucket) bool {
			for _, e := range bk.entries {
				if !yield(e) {
					return false
				}
			}
			return true
		})
	}
}

// Len returns the number of distinct keys.
func (b *Book) Len() int {
	return b.tree().Len()
}

// EntryCount returns the number of entries across all keys.
func (b *Book) EntryCount() int {
	n := 0
	b.tree().Ascend(func(bk *bucket) bool {
		n += len(bk.entries)
		return true
	})
	return n
}

// PruneWeights drops every entry whose weight is outside [lower, upper] and
// every key left without entries. It returns the number of entries removed.
func (b *Book) PruneWeights(lower, upper uint16) int {
	removed := 0
	var empty []*bucket
	b.tree().Ascend(func(bk *bucket) bool {
		kept := make([]Entry, 0, len(bk.entries))
		for _, e := range bk.entries {
			if e.Weight < lower || e.Weight > upper {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		bk.entries = kept
		if len(kept) == 0 {
			empty = append(empty, bk)
		}
		return true
	})
	for _, bk := range empty {
		b.tree().Delete(bk)
	}
	b.log.Debug().
		Uint16("lower", lower).
		Uint16("upper", upper).
		Int("entries_removed", removed).
		Int("keys_removed", len(empty)).
		Msg("pruned book by weight")
	return removed
}

// PruneKey removes every entry for key. It reports whether the key existed.
func (b *Book) PruneKey(key uint64) bool {
	_, ok := b.tree().Delete(&bucket{key: key})
	return ok
}

// Merge returns a new book holding, per key, b's entries followed by other's
// entries that b does not already have. Entries that differ only in weight are
// both kept.
func (b *Book) Merge(other *Book) (*Book, error) {
	if other == nil {
		return nil, ErrTypeMismatch
	}
	out := New()
	out.log = b.log
	b.tree().Ascend(func(bk *bucket) bool {
		out.tree().ReplaceOrInsert(&bucket{key: bk.key, entries: append([]Entry(nil), bk.entries...)})
		return true
	})
	added := 0
	other.tree().Ascend(func(bk *bucket) bool {
		for _, e := range bk.entries {
			if out.Add(e) {
				added++
			}
		}
		return true
	})
	b.log.Debug().
		Int("keys", out.Len()).
		Int("entries_added", added).
		Msg("merged books")
	return out, nil
}
