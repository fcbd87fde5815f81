package tfs

import "errors"

// Sentinel errors covering the error kinds of the engine: invalid argument,
// resource exhaustion, invalid state, and not-found. Callers should compare
// with errors.Is; internal code wraps these with context via fmt.Errorf's
// %w verb.
var (
	// ErrInvalidArgument covers a malformed path, an out-of-range handle,
	// an out-of-range inumber, or an empty name.
	ErrInvalidArgument = errors.New("tfs: invalid argument")

	// ErrNoSpace covers exhaustion of blocks, inode slots, open-file
	// entries, or directory entries.
	ErrNoSpace = errors.New("tfs: no space left")

	// ErrInvalidState covers a read or write past end-of-file, clearing or
	// deleting a free inode slot, or using a non-directory as a directory.
	ErrInvalidState = errors.New("tfs: invalid state")

	// ErrNotFound is returned by lookups that find no matching entry.
	ErrNotFound = errors.New("tfs: not found")

	// ErrNotDirectory is returned when a directory operation targets an
	// inode that is not a directory.
	ErrNotDirectory = errors.New("tfs: not a directory")

	// ErrClosed is returned by operations on an FS after Destroy has
	// completed.
	ErrClosed = errors.New("tfs: filesystem destroyed")
)
