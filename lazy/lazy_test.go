//go:build linux

package lazy

import (
	"bytes"
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/corofd/iouco/worker"
)

func newTestWorker(t *testing.T) *worker.Worker {
	t.Helper()
	w, err := worker.New(0, 64, nil)
	if err != nil {
		if err == syscall.ENOSYS || err == syscall.EPERM {
			t.Skipf("io_uring not available on this kernel: %v", err)
		}
		t.Fatalf("worker.New() error = %v", err)
	}
	go w.Run()
	t.Cleanup(func() {
		w.Stop()
		w.Close()
	})
	return w
}

func TestNopResult(t *testing.T) {
	w := newTestWorker(t)
	res, err := Nop(w).Result()
	if err != nil {
		t.Fatalf("Nop().Result() error = %v", err)
	}
	if res != 0 {
		t.Errorf("Nop result = %d, want 0", res)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	w := newTestWorker(t)

	f, err := os.CreateTemp(t.TempDir(), "iouco-lazy-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	payload := []byte("hello io_uring")
	n, err := Write(w, int(f.Fd()), payload, 0).Result()
	if err != nil {
		t.Fatalf("Write().Result() error = %v", err)
	}
	if int(n) != len(payload) {
		t.Fatalf("Write wrote %d bytes, want %d", n, len(payload))
	}

	buf := make([]byte, len(payload))
	n, err = Read(w, int(f.Fd()), buf, 0).Result()
	if err != nil {
		t.Fatalf("Read().Result() error = %v", err)
	}
	if string(buf[:n]) != string(payload) {
		t.Errorf("Read back %q, want %q", buf[:n], payload)
	}
}

func TestTimeoutExpiresWithSuccess(t *testing.T) {
	w := newTestWorker(t)

	start := time.Now()
	res, err := Timeout(w, 20*time.Millisecond, WithSuccessOnExpiry()).Result()
	elapsed := time.Since(start)

	// On kernel >= 6.0 a pure timer with ETIME_SUCCESS returns 0; older
	// kernels return -ETIME. Both are a correctly-fired timer.
	if err != nil && res != -int32(syscall.ETIME) {
		t.Fatalf("unexpected error = %v, res = %d", err, res)
	}
	if elapsed < 15*time.Millisecond {
		t.Errorf("timeout fired early after %v", elapsed)
	}
}

func TestChainPropagatesTerminalResult(t *testing.T) {
	w := newTestWorker(t)

	f, err := os.CreateTemp(t.TempDir(), "iouco-lazy-chain-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	payload := []byte("chained")
	a := Write(w, int(f.Fd()), payload, 0)
	b := Fsync(w, int(f.Fd()), 0)
	terminal := Chain(a, b)

	res, err := terminal.Result()
	if err != nil {
		t.Fatalf("chained Result() error = %v", err)
	}
	if res != 0 {
		t.Errorf("fsync result = %d, want 0", res)
	}

	n, _ := a.LinkResult()
	if int(n) != len(payload) {
		t.Errorf("non-terminal link result = %d, want %d", n, len(payload))
	}
}

func TestReadVReconstructsWholeFile(t *testing.T) {
	w := newTestWorker(t)

	const (
		iovecSize = 4096
		numIovecs = 256 // 256 * 4KiB = 1MiB
		fileSize  = iovecSize * numIovecs
	)

	content := make([]byte, fileSize)
	for i := range content {
		content[i] = byte(i)
	}

	f, err := os.CreateTemp(t.TempDir(), "iouco-lazy-readv-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}

	chunks := make([][]byte, numIovecs)
	iovecs := make([]syscall.Iovec, numIovecs)
	for i := range chunks {
		chunks[i] = make([]byte, iovecSize)
		iovecs[i].Base = &chunks[i][0]
		iovecs[i].SetLen(iovecSize)
	}

	n, err := ReadV(w, int(f.Fd()), iovecs, 0).Result()
	if err != nil {
		t.Fatalf("ReadV().Result() error = %v", err)
	}
	if int(n) != fileSize {
		t.Fatalf("ReadV read %d bytes, want %d", n, fileSize)
	}

	var got bytes.Buffer
	for _, c := range chunks {
		got.Write(c)
	}
	if !bytes.Equal(got.Bytes(), content) {
		t.Error("concatenated iovec contents do not match the file's bytes")
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	w := newTestWorker(t)

	op := Timeout(w, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := op.Await(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Await() error = %v, want context.DeadlineExceeded", err)
	}
}
