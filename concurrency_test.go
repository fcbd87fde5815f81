package tfs_test

import (
	"sync"
	"testing"
	"time"

	tfs "github.com/Ricardo-Luis-Projects/tecnicofs-go"
	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
)

// TestConcurrentAppenders has many goroutines write fixed-size, uniquely
// valued chunks to the same open handle. The handle's per-entry lock
// serializes the writes, so every chunk lands intact and none interleave.
func TestConcurrentAppenders(t *testing.T) {
	const goroutines = 100
	const chunkSize = 200

	fs := newTestFS(t, func(c *cfg.Config) {
		c.DataBlocks = 4096
		c.InodeDirectRefs = 8
	})

	fh, err := fs.Open("/f1", tfs.Create)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			buf := make([]byte, chunkSize)
			for j := range buf {
				buf[j] = '0' + id
			}
			if _, err := fs.Write(fh, buf); err != nil {
				t.Errorf("goroutine %d write: %v", id, err)
			}
		}(byte(i))
	}
	wg.Wait()

	if err := fs.Close(fh); err != nil {
		t.Fatalf("close: %v", err)
	}

	fh, err = fs.Open("/f1", 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fs.Close(fh)

	got := make([]byte, goroutines*chunkSize)
	n, err := fs.Read(fh, got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != len(got) {
		t.Fatalf("read %d bytes, want %d", n, len(got))
	}

	for i := 0; i < goroutines; i++ {
		chunk := got[i*chunkSize : (i+1)*chunkSize]
		id := chunk[0]
		for _, b := range chunk {
			if b != id {
				t.Fatalf("chunk %d is not uniform: found %q alongside %q", i, b, id)
			}
		}
	}
}

// TestTruncateCycles has several goroutines each repeatedly create-and-
// truncate their own file, write several chunks, close, reopen for read,
// verify the full contents, then loop again — exercising extend/clear
// under concurrent, independent inodes.
func TestTruncateCycles(t *testing.T) {
	const goroutines = 8
	const loops = 10
	const writesPerLoop = 5

	fs := newTestFS(t, func(c *cfg.Config) {
		c.DataBlocks = 4096
		c.InodeDirectRefs = 8
		c.InodeTableSize = goroutines + 1
		c.MaxOpenFiles = goroutines + 1
	})
	chunkSize := fs.Config().BlockSize + 1

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			path := string([]byte{'/', '0' + id})
			buf := make([]byte, chunkSize)
			for j := range buf {
				buf[j] = id
			}

			for l := 0; l < loops; l++ {
				fh, err := fs.Open(path, tfs.Create|tfs.Truncate)
				if err != nil {
					t.Errorf("goroutine %d open for write: %v", id, err)
					return
				}
				for w := 0; w < writesPerLoop; w++ {
					if _, err := fs.Write(fh, buf); err != nil {
						t.Errorf("goroutine %d write: %v", id, err)
						return
					}
				}
				if err := fs.Close(fh); err != nil {
					t.Errorf("goroutine %d close write handle: %v", id, err)
					return
				}

				fh, err = fs.Open(path, 0)
				if err != nil {
					t.Errorf("goroutine %d open for read: %v", id, err)
					return
				}
				readBuf := make([]byte, chunkSize)
				for w := 0; w < writesPerLoop; w++ {
					if _, err := fs.Read(fh, readBuf); err != nil {
						t.Errorf("goroutine %d read: %v", id, err)
						return
					}
					for _, b := range readBuf {
						if b != id {
							t.Errorf("goroutine %d read back mismatched byte %q, want %q", id, b, id)
							return
						}
					}
				}
				if err := fs.Close(fh); err != nil {
					t.Errorf("goroutine %d close read handle: %v", id, err)
					return
				}
			}
		}(byte(i))
	}
	wg.Wait()
}

// TestQuiescentShutdown has several handles open concurrently; a waiter
// blocks in DestroyAfterAllClosed while goroutines close their handles on a
// delay. The waiter must not return before every handle is closed.
func TestQuiescentShutdown(t *testing.T) {
	const n = 20

	fs := newTestFS(t, func(c *cfg.Config) {
		c.InodeTableSize = n + 1
		c.MaxOpenFiles = n + 1
	})

	handles := make([]int, n)
	for i := 0; i < n; i++ {
		path := string([]byte{'/', '0' + byte(i)})
		fh, err := fs.Open(path, tfs.Create)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		handles[i] = fh
	}

	var closed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(fh int) {
			defer wg.Done()
			time.Sleep(time.Duration(fh%5) * time.Millisecond)
			if err := fs.Close(fh); err != nil {
				t.Errorf("close %d: %v", fh, err)
				return
			}
			mu.Lock()
			closed++
			mu.Unlock()
		}(handles[i])
	}

	done := make(chan struct{})
	go func() {
		if err := fs.DestroyAfterAllClosed(); err != nil {
			t.Errorf("destroy after all closed: %v", err)
		}
		close(done)
	}()

	<-done
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if closed != n {
		t.Fatalf("destroy returned with %d/%d handles closed", closed, n)
	}
}
