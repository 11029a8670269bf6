package book

import (
	"fmt"
	"strings"
)

// Polyglot move encoding (uint16):
//   bits 0-5:   to square (0-63)
//   bits 6-11:  from square (0-63)
//   bits 12-14: promotion piece (0=none, 1=N, 2=B, 3=R, 4=Q)
//   bit  15:    unused
//
// Castling is stored as the king moving onto its own rook (e1h1, e1a1, e8h8, e8a8).

const (
	moveToMask     = 0x3F
	moveFromMask   = 0xFC0
	movePromoMask  = 0x7000
	moveFromShift  = 6
	movePromoShift = 12
)

// Square is a board square index, a1=0, b1=1, ..., h8=63.
type Square uint8

const (
	squareA1 Square = 0
	squareC1 Square = 2
	squareE1 Square = 4
	squareG1 Square = 6
	squareH1 Square = 7
	squareA8 Square = 56
	squareC8 Square = 58
	squareE8 Square = 60
	squareG8 Square = 62
	squareH8 Square = 63
)

func (sq Square) File() int { return int(sq & 7) }
func (sq Square) Rank() int { return int(sq>>3) & 7 }

func (sq Square) String() string {
	if sq > 63 {
		return fmt.Sprintf("Square(%d)", uint8(sq))
	}
	return string([]byte{byte('a' + sq.File()), byte('1' + sq.Rank())})
}

// PieceKind numbers pieces pawn=1 .. king=6. The Polyglot promotion code is
// the kind minus one.
type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case NoPiece:
		return ""
	case Pawn:
		return "p"
	case Knight:
		return "n"
	case Bishop:
		return "b"
	case Rook:
		return "r"
	case Queen:
		return "q"
	case King:
		return "k"
	}
	return fmt.Sprintf("PieceKind(%d)", uint8(k))
}

// Move is the decoded view of an EncodedMove. Drop is only set when the
// encoded origin and destination coincide.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
	Drop      PieceKind
}

// String renders the move in UCI style ("e2e4", "e7e8q"); drops render as "N@e4".
func (m Move) String() string {
	if m.Drop != NoPiece {
		return fmt.Sprintf("%s@%s", dropLetter(m.Drop), m.To)
	}
	return m.From.String() + m.To.String() + m.Promotion.String()
}

func dropLetter(k PieceKind) string {
	if k > King {
		return fmt.Sprintf("%d", uint8(k))
	}
	return strings.ToUpper(k.String())
}

// EncodedMove is the compact 16-bit move of a book entry.
type EncodedMove uint16

// EncodeMove packs a move. A promotion wins over the castling flag; a
// castling move has its destination rewritten to the rook it castles with.
func EncodeMove(from, to Square, promo PieceKind, castling bool) EncodedMove {
	if promo != NoPiece {
		return EncodedMove(uint16(promo-1)<<movePromoShift | uint16(to&63) | uint16(from&63)<<moveFromShift)
	}
	if castling {
		to = castlingRookSquare(to)
	}
	return EncodedMove(uint16(to&63) | uint16(from&63)<<moveFromShift)
}

// castlingRookSquare maps a king's castling target to the rook square on the
// same rank. Anything else is returned unchanged.
func castlingRookSquare(to Square) Square {
	switch to {
	case squareG1:
		return squareH1
	case squareC1:
		return squareA1
	case squareG8:
		return squareH8
	case squareC8:
		return squareA8
	}
	return to
}

func (e EncodedMove) To() Square   { return Square(e & moveToMask) }
func (e EncodedMove) From() Square { return Square((e & moveFromMask) >> moveFromShift) }

// PromotionCode returns the raw 3-bit promotion field.
func (e EncodedMove) PromotionCode() uint8 { return uint8((e & movePromoMask) >> movePromoShift) }

// Decode unpacks the move. Any 16-bit value decodes.
func (e EncodedMove) Decode() Move {
	m := Move{From: e.From(), To: e.To()}
	var kind PieceKind
	if code := e.PromotionCode(); code != 0 {
		kind = PieceKind(code + 1)
	}
	if m.From == m.To {
		m.Drop = kind
	} else {
		m.Promotion = kind
	}
	return m
}

func (e EncodedMove) String() string { return e.Decode().String() }
