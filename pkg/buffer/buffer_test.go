package buffer

import (
	"io"
	"sync"
	"testing"
)

func TestBuffer_WriteRead(t *testing.T) {
	buf := N[float32](8)

	n, err := buf.Write([]float32{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", buf.Len())
	}

	buf.CloseWrite()

	got := make([]float32, 8)
	n, err = buf.Read(got)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if n != 5 {
		t.Fatalf("Read returned %d, want 5", n)
	}

	if _, err = buf.Read(got); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestBuffer_TakeExact(t *testing.T) {
	buf := N[float32](16)
	buf.Write([]float32{1, 2, 3, 4, 5})

	// Not enough data: nothing is consumed.
	if out, ok := buf.TakeExact(6); ok {
		t.Fatalf("TakeExact(6) = %v, want no data", out)
	}
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d after failed take, want 5", buf.Len())
	}

	out, ok := buf.TakeExact(3)
	if !ok || len(out) != 3 {
		t.Fatalf("TakeExact(3) = %v, %v", out, ok)
	}
	if out[0] != 1 || out[2] != 3 {
		t.Fatalf("TakeExact(3) = %v, want [1 2 3]", out)
	}
	if buf.Len() != 2 {
		t.Fatalf("Len() = %d after take, want 2", buf.Len())
	}

	rest := buf.TakeAll()
	if len(rest) != 2 || rest[0] != 4 || rest[1] != 5 {
		t.Fatalf("TakeAll() = %v, want [4 5]", rest)
	}
	if buf.Len() != 0 {
		t.Fatalf("Len() = %d after TakeAll, want 0", buf.Len())
	}
}

func TestBuffer_BlockingRead(t *testing.T) {
	buf := N[byte](4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf.Write([]byte{7})
		buf.CloseWrite()
	}()

	got := make([]byte, 1)
	n, err := buf.Read(got)
	if err != nil || n != 1 || got[0] != 7 {
		t.Fatalf("Read = %d, %v, %v", n, got, err)
	}
	wg.Wait()
}

func TestBuffer_CloseWithError(t *testing.T) {
	buf := N[byte](4)
	errClosed := io.ErrUnexpectedEOF
	buf.CloseWithError(errClosed)

	if _, err := buf.Write([]byte{1}); err == nil {
		t.Fatal("Write after close should fail")
	}
	if _, err := buf.Read(make([]byte, 1)); err == nil {
		t.Fatal("Read after close should fail")
	}
}
