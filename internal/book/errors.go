package book

import "errors"

var (
	// ErrMalformedEntry is returned when a record is not exactly EntrySize bytes.
	ErrMalformedEntry = errors.New("malformed book entry")
	// ErrCorruptBook is returned when a book's byte length is not a multiple of EntrySize.
	ErrCorruptBook = errors.New("corrupt book")
	// ErrIndexOutOfRange is returned by Records.At for indices outside the book.
	ErrIndexOutOfRange = errors.New("book index out of range")
	// ErrFileBusy is returned by Write when the book's file mapping could not be released.
	ErrFileBusy = errors.New("book file busy")
	// ErrTypeMismatch is returned by Merge when the other book is nil.
	ErrTypeMismatch = errors.New("merge with a non-book value")
)
