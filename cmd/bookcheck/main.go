package main

import (
	"fmt"
	"os"

	"github.com/notnil/chess"

	"polybook/internal/book"
	"polybook/internal/config"
	"polybook/internal/logx"
)

func main() {
	cfg := config.FromEnv()
	path := cfg.BookPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	log := logx.NewLogger(cfg.LogLevel)

	b := book.New()
	b.SetLogger(log)
	if err := b.ReadFile(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("load book")
		os.Exit(1)
	}
	defer b.Close()

	pos := chess.StartingPosition()
	moves := b.PositionMoves(pos)
	fmt.Printf("%s: %d positions, %d entries\n", path, b.Len(), b.EntryCount())
	fmt.Printf("startpos key: %016x\n", book.PolyglotKey(pos))
	for _, mv := range moves {
		fmt.Println("startpos move:", mv.UCI, "weight:", mv.Weight)
	}
	if len(moves) == 0 {
		fmt.Println("startpos move: none")
	}
}
