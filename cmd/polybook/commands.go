package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/notnil/chess"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"polybook/internal/book"
	"polybook/internal/db"
)

func (e *env) bookPath(c *cli.Context) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return e.cfg.BookPath
}

func positionFromFEN(fen string) (*chess.Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return chess.StartingPosition(), nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	return chess.NewGame(opt).Position(), nil
}

func (e *env) infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print size and entry counts of a book",
		ArgsUsage: "[book]",
		Action: func(c *cli.Context) error {
			path := e.bookPath(c)
			b, err := e.loadBook(path)
			if err != nil {
				return err
			}
			defer b.Close()

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "path\t%s\n", path)
			if st, err := os.Stat(path); err == nil {
				fmt.Fprintf(w, "size\t%s\n", humanize.Bytes(uint64(st.Size())))
			}
			if n, err := b.Records().Len(); err == nil && n > 0 {
				fmt.Fprintf(w, "records\t%s\n", humanize.Comma(int64(n)))
				if dup := n - b.EntryCount(); dup > 0 {
					fmt.Fprintf(w, "duplicates\t%s\n", humanize.Comma(int64(dup)))
				}
			}
			fmt.Fprintf(w, "positions\t%s\n", humanize.Comma(int64(b.Len())))
			fmt.Fprintf(w, "entries\t%s\n", humanize.Comma(int64(b.EntryCount())))
			return w.Flush()
		},
	}
}

func (e *env) dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "print raw records in file order",
		ArgsUsage: "[book]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "from", Usage: "first record; negative counts from the end"},
			&cli.IntFlag{Name: "count", Usage: "number of records, 0 for all"},
		},
		Action: func(c *cli.Context) error {
			recs, err := book.OpenFile(e.bookPath(c))
			if err != nil {
				return err
			}
			defer recs.Close()

			n, err := recs.Len()
			if err != nil {
				return err
			}
			from := c.Int("from")
			if from < 0 {
				from += n
			}
			if (n > 0 || c.Int("from") != 0) && (from < 0 || from >= n) {
				return fmt.Errorf("dump from %d of %d: %w", c.Int("from"), n, book.ErrIndexOutOfRange)
			}
			count := c.Int("count")
			if count <= 0 || from+count > n {
				count = n - from
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "index\tkey\tmove\tweight\tlearn")
			for i := from; i < from+count; i++ {
				rec, err := recs.At(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%016x\t%s\t%d\t%d\n", i, rec.Key, rec.Move, rec.Weight, rec.Learn)
			}
			return w.Flush()
		},
	}
}

func (e *env) lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "list the book moves of a position",
		ArgsUsage: "[book]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Usage: "position, defaults to the start position"},
			&cli.StringFlag{Name: "key", Usage: "raw hex key instead of a FEN"},
		},
		Action: func(c *cli.Context) error {
			b, err := e.loadBook(e.bookPath(c))
			if err != nil {
				return err
			}
			defer b.Close()

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			if c.IsSet("key") {
				key, err := parseKey(c.String("key"))
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "key\t%016x\n", key)
				for m, weight := range b.WeightedMoves(key) {
					fmt.Fprintf(w, "%s\t%d\n", m, weight)
				}
				return w.Flush()
			}

			pos, err := positionFromFEN(c.String("fen"))
			if err != nil {
				return err
			}
			moves := b.PositionMoves(pos)
			total := 0
			for _, mv := range moves {
				total += mv.Weight
			}
			fmt.Fprintf(w, "key\t%016x\n", book.PolyglotKey(pos))
			for _, mv := range moves {
				pct := 0.0
				if total > 0 {
					pct = float64(mv.Weight) * 100 / float64(total)
				}
				fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%d\n", mv.UCI, mv.Weight, pct, mv.Learn)
			}
			return w.Flush()
		},
	}
}

func (e *env) addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "add a move for a position and rewrite the book",
		ArgsUsage: "[book]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Usage: "position, defaults to the start position"},
			&cli.StringFlag{Name: "move", Usage: "move in UCI notation", Required: true},
			&cli.UintFlag{Name: "weight", Value: 1},
			&cli.UintFlag{Name: "learn"},
		},
		Action: func(c *cli.Context) error {
			path := e.bookPath(c)
			weight := c.Uint("weight")
			if weight > 0xffff {
				return fmt.Errorf("weight %d does not fit 16 bits", weight)
			}
			learn := c.Uint("learn")
			if learn > math.MaxUint32 {
				return fmt.Errorf("learn %d does not fit 32 bits", learn)
			}
			pos, err := positionFromFEN(c.String("fen"))
			if err != nil {
				return err
			}
			m, err := chess.UCINotation{}.Decode(pos, c.String("move"))
			if err != nil {
				return fmt.Errorf("decode move %q: %w", c.String("move"), err)
			}

			b, err := e.loadBook(path)
			if err != nil {
				return err
			}
			defer b.Close()
			if !b.AddMove(pos, m, uint16(weight), uint32(learn)) {
				e.log.Info().Str("move", c.String("move")).Msg("entry already in book")
				return nil
			}
			return e.saveBook(b, path)
		},
	}
}

func (e *env) mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "merge books; earlier inputs come first within a position",
		ArgsUsage: "<book> <book> [book...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) < 2 {
				return errors.New("merge needs at least two books")
			}

			books := make([]*book.Book, len(paths))
			defer func() {
				for _, b := range books {
					if b != nil {
						_ = b.Close()
					}
				}
			}()
			var g errgroup.Group
			for i, path := range paths {
				g.Go(func() error {
					b, err := e.loadBook(path)
					if err != nil {
						return err
					}
					books[i] = b
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			merged := books[0]
			for _, b := range books[1:] {
				var err error
				if merged, err = merged.Merge(b); err != nil {
					return err
				}
			}
			for _, b := range books {
				if err := b.Close(); err != nil {
					return fmt.Errorf("release input: %w: %w", book.ErrFileBusy, err)
				}
			}
			e.log.Info().
				Int("inputs", len(paths)).
				Int("positions", merged.Len()).
				Int("entries", merged.EntryCount()).
				Msg("merged books")
			return e.saveBook(merged, c.String("output"))
		},
	}
}

func (e *env) pruneCommand() *cli.Command {
	return &cli.Command{
		Name:      "prune",
		Usage:     "drop entries outside a weight range and whole positions",
		ArgsUsage: "[book]",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "min", Usage: "lowest weight kept (default from the archive settings, else 0)"},
			&cli.UintFlag{Name: "max", Usage: "highest weight kept (default from the archive settings, else 65535)"},
			&cli.StringSliceFlag{Name: "fen", Usage: "position to remove entirely"},
			&cli.StringSliceFlag{Name: "key", Usage: "hex key to remove entirely"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "defaults to the input book"},
		},
		Action: func(c *cli.Context) error {
			path := e.bookPath(c)
			lower, upper, err := e.pruneBounds(c)
			if err != nil {
				return err
			}

			b, err := e.loadBook(path)
			if err != nil {
				return err
			}
			defer b.Close()

			for _, fen := range c.StringSlice("fen") {
				pos, err := positionFromFEN(fen)
				if err != nil {
					return err
				}
				if !b.PrunePosition(pos) {
					e.log.Warn().Str("fen", fen).Msg("position not in book")
				}
			}
			for _, s := range c.StringSlice("key") {
				key, err := parseKey(s)
				if err != nil {
					return err
				}
				if !b.PruneKey(key) {
					e.log.Warn().Str("key", s).Msg("key not in book")
				}
			}
			removed := b.PruneWeights(lower, upper)
			e.log.Info().
				Uint16("min", lower).
				Uint16("max", upper).
				Int("removed", removed).
				Int("positions", b.Len()).
				Msg("pruned book")

			out := c.String("output")
			if out == "" {
				out = path
			}
			return e.saveBook(b, out)
		},
	}
}

// pruneBounds resolves the weight range from flags, falling back to the
// archive's stored settings when the archive exists.
func (e *env) pruneBounds(c *cli.Context) (uint16, uint16, error) {
	lower, upper := uint(0), uint(0xffff)
	if dbPath := c.String("db"); !c.IsSet("min") || !c.IsSet("max") {
		if _, err := os.Stat(dbPath); err == nil {
			store, err := db.Open(dbPath)
			if err != nil {
				return 0, 0, err
			}
			defer store.Close()
			settings, err := store.GetSettings(c.Context)
			if err != nil {
				return 0, 0, fmt.Errorf("load settings: %w", err)
			}
			lower, upper = uint(settings.PruneLower), uint(settings.PruneUpper)
		}
	}
	if c.IsSet("min") {
		lower = c.Uint("min")
	}
	if c.IsSet("max") {
		upper = c.Uint("max")
	}
	if lower > 0xffff || upper > 0xffff || lower > upper {
		return 0, 0, fmt.Errorf("invalid weight range [%d, %d]", lower, upper)
	}
	return uint16(lower), uint16(upper), nil
}

func (e *env) exportDBCommand() *cli.Command {
	return &cli.Command{
		Name:      "export-db",
		Usage:     "save a book into the sqlite archive",
		ArgsUsage: "[book]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "archive name, defaults to the file name"},
		},
		Action: func(c *cli.Context) error {
			path := e.bookPath(c)
			name := c.String("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			b, err := e.loadBook(path)
			if err != nil {
				return err
			}
			defer b.Close()

			store, err := e.openDB(c)
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.SaveBook(c.Context, name, path, b); err != nil {
				return fmt.Errorf("save %s: %w", name, err)
			}
			e.log.Info().Str("name", name).Int("entries", b.EntryCount()).Msg("exported book")
			return nil
		},
	}
}

func (e *env) importDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-db",
		Usage: "write a book saved in the sqlite archive to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			store, err := e.openDB(c)
			if err != nil {
				return err
			}
			defer store.Close()
			b, err := store.LoadBook(c.Context, c.String("name"))
			if err != nil {
				return fmt.Errorf("load %s: %w", c.String("name"), err)
			}
			b.SetLogger(e.log)
			return e.saveBook(b, c.String("output"))
		},
	}
}

func (e *env) booksCommand() *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "list books saved in the sqlite archive",
		Action: func(c *cli.Context) error {
			store, err := e.openDB(c)
			if err != nil {
				return err
			}
			defer store.Close()
			books, err := store.ListBooks(c.Context)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "name\tpositions\tentries\tsaved\tsource")
			for _, bi := range books {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", bi.Name, bi.Keys, bi.Entries, bi.SavedAt, bi.SourcePath)
			}
			return w.Flush()
		},
	}
}

func (e *env) openDB(c *cli.Context) (*db.Store, error) {
	path := c.String("db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return db.Open(path)
}
