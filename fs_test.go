package tfs_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
	tfs "github.com/Ricardo-Luis-Projects/tecnicofs-go"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func newTestFS(t *testing.T, mutate func(*cfg.Config)) *tfs.FS {
	t.Helper()
	c := cfg.Default()
	if mutate != nil {
		mutate(&c)
	}
	fs, err := tfs.New(c)
	if err != nil {
		t.Fatalf("tfs.New: %v", err)
	}
	return fs
}

// TestRoundTrip writes then reads back the same bytes through a fresh open.
func TestRoundTrip(t *testing.T) {
	fs := newTestFS(t, nil)

	fh, err := fs.Open("/file", tfs.Create)
	if err != nil {
		t.Fatalf("open for create: %v", err)
	}

	want := []byte("abcdefghij")
	n, err := fs.Write(fh, want)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(want) {
		t.Fatalf("write returned %d, want %d", n, len(want))
	}
	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}

	fh, err = fs.Open("/file", 0)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	got := make([]byte, len(want))
	n, err = fs.Read(fh, got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != len(want) || !bytes.Equal(got, want) {
		t.Fatalf("read back %q, want %q", got[:n], want)
	}

	n, err = fs.Read(fh, got)
	if err != nil {
		t.Fatalf("read at eof: %v", err)
	}
	if n != 0 {
		t.Fatalf("read at eof returned %d bytes, want 0", n)
	}

	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// TestIdempotentCreate: open("/x", CREAT) twice yields two handles to the
// same inumber.
func TestIdempotentCreate(t *testing.T) {
	fs := newTestFS(t, nil)

	fh1, err := fs.Open("/x", tfs.Create)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	defer fs.Close(fh1)

	fh2, err := fs.Open("/x", tfs.Create)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer fs.Close(fh2)

	if fh1 == fh2 {
		t.Fatalf("expected distinct handles, got the same %d twice", fh1)
	}

	in1, err := fs.Lookup("/x")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	in2, err := fs.Create("/x", tfs.FileType)
	if err != nil {
		t.Fatalf("create existing: %v", err)
	}
	if in2 != in1 {
		t.Fatalf("create on existing name returned inumber %d, want the pre-existing %d", in2, in1)
	}
}

func TestLookupMissing(t *testing.T) {
	fs := newTestFS(t, nil)
	if _, err := fs.Lookup("/nope"); err == nil {
		t.Fatalf("expected lookup of a missing path to fail")
	}
}

func TestInvalidPaths(t *testing.T) {
	fs := newTestFS(t, nil)
	cases := []string{"", "/", "noslash", "/a/b"}
	for _, p := range cases {
		if _, err := fs.Open(p, tfs.Create); err == nil {
			t.Errorf("Open(%q, Create) succeeded, want an error", p)
		}
	}
}

// TestAppendFlag exercises an append-mode handle snapping its offset to
// the current size before every transfer.
func TestAppendFlag(t *testing.T) {
	fs := newTestFS(t, nil)

	fh, err := fs.Open("/a", tfs.Create)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := fs.Write(fh, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}

	fh, err = fs.Open("/a", tfs.Append)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := fs.Write(fh, []byte("world")); err != nil {
		t.Fatalf("append write: %v", err)
	}
	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}

	fh, err = fs.Open("/a", 0)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer fs.Close(fh)

	buf := make([]byte, 10)
	n, err := fs.Read(fh, buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := "helloworld"; string(buf[:n]) != want {
		t.Fatalf("got %q, want %q", buf[:n], want)
	}
}

func TestCopyToExternal(t *testing.T) {
	fs := newTestFS(t, nil)

	fh, err := fs.Open("/src", tfs.Create)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := bytes.Repeat([]byte("z"), fs.Config().BlockSize+7)
	if _, err := fs.Write(fh, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}

	dst := t.TempDir() + "/out.bin"
	if err := fs.CopyToExternal("/src", dst); err != nil {
		t.Fatalf("copy to external: %v", err)
	}

	got, err := readFile(dst)
	if err != nil {
		t.Fatalf("read host file: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("copied %d bytes, want %d to match", len(got), len(want))
	}
}

func TestListRoot(t *testing.T) {
	fs := newTestFS(t, nil)
	names := []string{"a", "b", "c"}
	for _, n := range names {
		if _, err := fs.Open("/"+n, tfs.Create); err != nil {
			t.Fatalf("create %q: %v", n, err)
		}
	}

	got, err := fs.ListRoot()
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(names), got)
	}
}
