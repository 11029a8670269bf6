package book

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// ErrIllegalMove is returned when a book move has no legal counterpart in the
// position it is stored under.
var ErrIllegalMove = errors.New("book move not legal in position")

type MoveWeight struct {
	UCI    string
	Weight int
	Learn  uint32
	Move   *chess.Move
}

func squareOf(sq chess.Square) Square {
	return Square(sq)
}

func pieceKindOf(pt chess.PieceType) PieceKind {
	switch pt {
	case chess.Pawn:
		return Pawn
	case chess.Knight:
		return Knight
	case chess.Bishop:
		return Bishop
	case chess.Rook:
		return Rook
	case chess.Queen:
		return Queen
	case chess.King:
		return King
	}
	return NoPiece
}

func isCastling(m *chess.Move) bool {
	return m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle)
}

// EncodeChessMove encodes m using the book's castling convention.
func EncodeChessMove(m *chess.Move) EncodedMove {
	return EncodeMove(squareOf(m.S1()), squareOf(m.S2()), pieceKindOf(m.Promo()), isCastling(m))
}

// AddMove adds m as a candidate for pos.
func (b *Book) AddMove(pos *chess.Position, m *chess.Move, weight uint16, learn uint32) bool {
	return b.Add(Entry{
		Key:    PolyglotKey(pos),
		Move:   EncodeChessMove(m),
		Weight: weight,
		Learn:  learn,
	})
}

// PrunePosition removes every entry stored for pos.
func (b *Book) PrunePosition(pos *chess.Position) bool {
	return b.PruneKey(PolyglotKey(pos))
}

// ResolveMove finds the legal move of pos that mv was encoded from. Castling
// moves are matched through their rook square.
func ResolveMove(pos *chess.Position, mv Move) (*chess.Move, error) {
	if mv.Drop != NoPiece {
		return nil, fmt.Errorf("drop %s: %w", mv, ErrIllegalMove)
	}
	for _, m := range pos.ValidMoves() {
		if squareOf(m.S1()) != mv.From || pieceKindOf(m.Promo()) != mv.Promotion {
			continue
		}
		to := squareOf(m.S2())
		if to == mv.To || (isCastling(m) && castlingRookSquare(to) == mv.To) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("move %s: %w", mv, ErrIllegalMove)
}

// PositionMoves returns the book moves for pos in book order, resolved
// against the position. Entries that do not resolve to a legal move are
// skipped.
func (b *Book) PositionMoves(pos *chess.Position) []MoveWeight {
	key := PolyglotKey(pos)
	entries, ok := b.Entries(key)
	if !ok {
		return nil
	}
	notation := chess.UCINotation{}
	out := make([]MoveWeight, 0, len(entries))
	for _, e := range entries {
		m, err := ResolveMove(pos, e.Move.Decode())
		if err != nil {
			b.log.Debug().Err(err).Uint64("key", key).Msg("skipping book move")
			continue
		}
		out = append(out, MoveWeight{
			UCI:    notation.Encode(pos, m),
			Weight: int(e.Weight),
			Learn:  e.Learn,
			Move:   m,
		})
	}
	return out
}
