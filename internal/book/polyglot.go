package book

import "github.com/notnil/chess"

const (
	castleOffset    = 768
	enPassantOffset = 772
	turnOffset      = 780
)

// PolyglotKey returns the Polyglot Zobrist key of pos.
func PolyglotKey(pos *chess.Position) uint64 {
	var key uint64
	board := pos.Board()
	for sq, p := range board.SquareMap() {
		kind, ok := polyglotPieceKind(p)
		if !ok {
			continue
		}
		key ^= random64[64*kind+int(sq)]
	}

	cr := pos.CastleRights()
	if cr.CanCastle(chess.White, chess.KingSide) {
		key ^= random64[castleOffset+0]
	}
	if cr.CanCastle(chess.White, chess.QueenSide) {
		key ^= random64[castleOffset+1]
	}
	if cr.CanCastle(chess.Black, chess.KingSide) {
		key ^= random64[castleOffset+2]
	}
	if cr.CanCastle(chess.Black, chess.QueenSide) {
		key ^= random64[castleOffset+3]
	}

	// the en passant file only counts when a pawn of the side to move could
	// actually capture onto it.
	if ep := pos.EnPassantSquare(); ep != chess.NoSquare && canCaptureEnPassant(board, pos.Turn(), ep) {
		key ^= random64[enPassantOffset+int(ep.File())]
	}

	if pos.Turn() == chess.White {
		key ^= random64[turnOffset]
	}
	return key
}

// polyglotPieceKind orders pieces bp, wp, bn, wn, ..., bk, wk.
func polyglotPieceKind(p chess.Piece) (int, bool) {
	var idx int
	switch p.Type() {
	case chess.Pawn:
		idx = 0
	case chess.Knight:
		idx = 1
	case chess.Bishop:
		idx = 2
	case chess.Rook:
		idx = 3
	case chess.Queen:
		idx = 4
	case chess.King:
		idx = 5
	default:
		return 0, false
	}
	kind := 2 * idx
	if p.Color() == chess.White {
		kind++
	}
	return kind, true
}

func canCaptureEnPassant(board *chess.Board, turn chess.Color, ep chess.Square) bool {
	file := int(ep.File())
	rank := int(ep.Rank())
	pawn := chess.WhitePawn
	if turn == chess.White {
		rank--
	} else {
		pawn = chess.BlackPawn
		rank++
	}
	if rank < 0 || rank > 7 {
		return false
	}
	for _, f := range []int{file - 1, file + 1} {
		if f < 0 || f > 7 {
			continue
		}
		if board.Piece(chess.Square(rank*8+f)) == pawn {
			return true
		}
	}
	return false
}
