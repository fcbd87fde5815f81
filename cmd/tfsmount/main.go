// Command tfsmount exposes a volume as a real, flat, single-level FUSE
// mount: every call the kernel makes is translated into a call on the
// same *tfs.FS facade that the direct Go API and tfsctl use.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"syscall"

	tfs "github.com/Ricardo-Luis-Projects/tecnicofs-go"
	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

func main() {
	debug := flag.Bool("debug", false, "print FUSE debug data")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: tfsmount MOUNTPOINT")
	}

	volume, err := tfs.New(cfg.Default())
	if err != nil {
		log.Fatalf("tfsmount: build volume: %v", err)
	}

	root := &rootNode{volume: volume}
	server, err := fs.Mount(flag.Arg(0), root, &fs.Options{
		MountOptions: fuse.MountOptions{Debug: *debug},
	})
	if err != nil {
		log.Fatalf("tfsmount: mount: %v", err)
	}
	server.Wait()
}

// toErrno translates the facade's sentinel errors to the syscall.Errno
// values FUSE callers expect.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, tfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, tfs.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, tfs.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, tfs.ErrInvalidArgument), errors.Is(err, tfs.ErrInvalidState):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// rootNode is the single directory in the tree: the volume's flat root.
// Because the engine has no nested directories, every other node in the
// FUSE tree is a regular file directly beneath rootNode.
type rootNode struct {
	fs.Inode
	volume *tfs.FS
}

var (
	_ fs.NodeLookuper  = (*rootNode)(nil)
	_ fs.NodeReaddirer = (*rootNode)(nil)
	_ fs.NodeCreater   = (*rootNode)(nil)
)

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	inumber, err := r.volume.Lookup("/" + name)
	if err != nil {
		return nil, toErrno(err)
	}
	child := r.NewInode(ctx, &fileNode{volume: r.volume, inumber: inumber},
		fs.StableAttr{Mode: syscall.S_IFREG, Ino: uint64(inumber) + 1})
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := r.volume.ListRoot()
	if err != nil {
		return nil, toErrno(err)
	}
	entries := make([]fuse.DirEntry, len(names))
	for i, name := range names {
		inumber, err := r.volume.Lookup("/" + name)
		if err != nil {
			return nil, toErrno(err)
		}
		entries[i] = fuse.DirEntry{Name: name, Mode: syscall.S_IFREG, Ino: uint64(inumber) + 1}
	}
	return fs.NewListDirStream(entries), 0
}

func (r *rootNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	inumber, err := r.volume.Create("/"+name, tfs.FileType)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	child := r.NewInode(ctx, &fileNode{volume: r.volume, inumber: inumber},
		fs.StableAttr{Mode: syscall.S_IFREG, Ino: uint64(inumber) + 1})
	return child, nil, 0, 0
}

// fileNode is a regular file backed by one inode of the volume. It holds
// no data of its own; Open re-derives the path from its parent, and every
// Open/Read/Write call routes through the facade.
type fileNode struct {
	fs.Inode
	volume  *tfs.FS
	inumber int
}

var (
	_ fs.NodeOpener   = (*fileNode)(nil)
	_ fs.NodeReader   = (*fileNode)(nil)
	_ fs.NodeWriter   = (*fileNode)(nil)
	_ fs.NodeFlusher  = (*fileNode)(nil)
	_ fs.NodeReleaser = (*fileNode)(nil)
)

// fileHandle wraps one open-file-table handle, since every FUSE Open maps
// to its own cursor in the facade.
type fileHandle struct {
	volume *tfs.FS
	handle int
}

func (n *fileNode) path() string {
	return "/" + n.Path(n.Root())
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	var openFlags tfs.OpenFlag
	if flags&syscall.O_TRUNC != 0 {
		openFlags |= tfs.Truncate
	}
	if flags&syscall.O_APPEND != 0 {
		openFlags |= tfs.Append
	}

	h, err := n.volume.Open(n.path(), openFlags)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &fileHandle{volume: n.volume, handle: h}, 0, 0
}

// Read/Write ignore off: the facade's handles carry their own advancing
// cursor rather than accepting an explicit offset per call, so random
// access through this mount is not supported.
func (n *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	count, err := h.volume.Read(h.handle, dest)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (n *fileNode) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return 0, syscall.EBADF
	}
	count, err := h.volume.Write(h.handle, data)
	if err != nil {
		return 0, toErrno(err)
	}
	return uint32(count), 0
}

func (n *fileNode) Flush(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	return 0
}

func (n *fileNode) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	h, ok := fh.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	return toErrno(h.volume.Close(h.handle))
}
