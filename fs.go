// Package tfs implements an in-memory, single-volume filesystem with a
// small POSIX-like API: create/open/read/write/close plus copy-out to a
// host file. The hard part is the concurrent state engine underneath —
// the inode allocator and extent indirection, the open-file table with
// per-handle cursors, and the layered locking discipline across the
// directory/inode/open-file domains — which is what the rest of this
// package implements.
package tfs

import (
	"fmt"
	"os"
	"strings"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
)

// rootDirInumber is the reserved inumber of the single flat root
// directory, created during New.
const rootDirInumber = 0

// FS is an owned filesystem instance: the inode table, block pool and
// open-file table it holds are private fields, not process-global state.
type FS struct {
	cfg       cfg.Config
	pool      *pool
	inodes    *inodeTable
	openFiles *openFileTable
}

// New builds a filesystem with the given configuration and creates the
// root directory.
func New(c cfg.Config) (*FS, error) {
	c, err := c.Derive()
	if err != nil {
		return nil, fmt.Errorf("tfs: %w", err)
	}

	p := newPool(c.BlockSize, c.DataBlocks, c.Delay)
	inodes := newInodeTable(p, c)

	root, err := inodes.create(DirectoryType)
	if err != nil {
		return nil, fmt.Errorf("tfs: create root directory: %w", err)
	}
	if root != rootDirInumber {
		return nil, fmt.Errorf("tfs: root directory got inumber %d, want %d", root, rootDirInumber)
	}

	return &FS{
		cfg:       c,
		pool:      p,
		inodes:    inodes,
		openFiles: newOpenFileTable(inodes, c),
	}, nil
}

// Config returns the configuration this filesystem was built with.
func (fs *FS) Config() cfg.Config {
	return fs.cfg
}

// validatePath enforces the path grammar: "/" followed by 1..(MaxFileName-1)
// bytes that do not include "/". It returns the stripped, flat name the
// directory layer operates on.
func validatePath(path string, c cfg.Config) (string, error) {
	if len(path) < 2 || path[0] != '/' {
		return "", fmt.Errorf("%w: path must start with / and have at least one more byte: %q", ErrInvalidArgument, path)
	}
	name := path[1:]
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: only root-level names are addressable: %q", ErrInvalidArgument, path)
	}
	if len(name) > c.MaxFileName-1 {
		return "", fmt.Errorf("%w: name too long: %q", ErrInvalidArgument, path)
	}
	return name, nil
}

// Lookup resolves path to an inumber, or ErrNotFound if no such entry
// exists in the root directory.
func (fs *FS) Lookup(path string) (int, error) {
	name, err := validatePath(path, fs.cfg)
	if err != nil {
		return -1, err
	}
	return fs.inodes.findInDir(rootDirInumber, name)
}

// Create resolves path within the root directory, creating a new inode of
// typ if none exists yet. An existing entry is returned unchanged
// (idempotent create).
func (fs *FS) Create(path string, typ InodeType) (int, error) {
	name, err := validatePath(path, fs.cfg)
	if err != nil {
		return -1, err
	}
	return fs.inodes.createInDir(rootDirInumber, typ, name)
}

// Open resolves (optionally creating) path, truncates it if requested, and
// returns a fresh handle from the open file table.
//
// If flags includes Create and the file did not exist, Create's
// side effect (the new inode) is not undone even if admitting the open
// file table entry subsequently fails.
func (fs *FS) Open(path string, flags OpenFlag) (int, error) {
	name, err := validatePath(path, fs.cfg)
	if err != nil {
		return -1, err
	}

	var inumber int
	if flags.Has(Create) {
		inumber, err = fs.inodes.createInDir(rootDirInumber, FileType, name)
	} else {
		inumber, err = fs.inodes.findInDir(rootDirInumber, name)
	}
	if err != nil {
		return -1, err
	}

	if flags.Has(Truncate) {
		if err := fs.inodes.clear(inumber); err != nil {
			return -1, err
		}
	}

	return fs.openFiles.add(inumber, flags.Has(Append))
}

// Close releases fhandle back to the open file table, waking any
// DestroyAfterAllClosed waiter once the live-handle count reaches zero.
func (fs *FS) Close(fhandle int) error {
	return fs.openFiles.remove(fhandle)
}

// Read transfers up to len(buf) bytes from fhandle's current offset,
// advancing it, and returns the number of bytes actually transferred.
func (fs *FS) Read(fhandle int, buf []byte) (int, error) {
	return fs.openFiles.read(fhandle, buf)
}

// Write transfers up to len(buf) bytes to fhandle's current offset,
// extending the file as needed, and returns the number of bytes actually
// transferred (never partial on success: the full clamped count).
func (fs *FS) Write(fhandle int, buf []byte) (int, error) {
	return fs.openFiles.write(fhandle, buf)
}

// Destroy releases the filesystem. The in-memory engine owns no resources
// beyond Go-managed memory, so this is a no-op kept for symmetry with
// DestroyAfterAllClosed.
func (fs *FS) Destroy() error {
	return nil
}

// DestroyAfterAllClosed blocks until every open handle has been closed,
// then destroys the filesystem. Any number of concurrent opens and closes
// may be in flight; the moment the live-handle count reaches zero, exactly
// one waiter unblocks.
func (fs *FS) DestroyAfterAllClosed() error {
	fs.openFiles.waitForQuiescence()
	return fs.Destroy()
}

// CopyToExternal reads srcPath in full and writes it to a new host file at
// dstPath, the engine's one compound operation, built entirely out of the
// public API above.
func (fs *FS) CopyToExternal(srcPath, dstPath string) error {
	fhandle, err := fs.Open(srcPath, 0)
	if err != nil {
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		_ = fs.Close(fhandle)
		return err
	}

	buf := make([]byte, fs.cfg.BlockSize)
	for {
		n, err := fs.Read(fhandle, buf)
		if err != nil {
			_ = dst.Close()
			_ = fs.Close(fhandle)
			return err
		}
		if n == 0 {
			break
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			_ = dst.Close()
			_ = fs.Close(fhandle)
			return err
		}
	}

	if err := dst.Close(); err != nil {
		_ = fs.Close(fhandle)
		return err
	}
	return fs.Close(fhandle)
}

// ListRoot returns the names currently present in the flat root directory,
// in no particular order. It is read-only sugar over the directory
// layer's entry scan for the benefit of callers like tfsctl's ls
// subcommand; it does not change directory layer semantics.
func (fs *FS) ListRoot() ([]string, error) {
	fs.inodes.locks[rootDirInumber].RLock()
	defer fs.inodes.locks[rootDirInumber].RUnlock()

	rec := &fs.inodes.slots[rootDirInumber]
	blk, err := fs.inodes.pool.block(int(rec.direct[0]))
	if err != nil {
		return nil, err
	}

	var names []string
	for i := 0; i < fs.cfg.MaxDirEntries; i++ {
		name, inum := decodeDirEntry(blk, i, fs.cfg)
		if inum != emptyDirEntry {
			names = append(names, name)
		}
	}
	return names, nil
}
