package optimize

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPool_ResetAndDrop(t *testing.T) {
	created := 0
	pool := NewPool(func() []int {
		created++
		return make([]int, 0, 4)
	}, func(s []int) bool {
		return cap(s) <= 4
	})

	s := pool.Get()
	if cap(s) != 4 {
		t.Fatalf("expected capacity 4, got %d", cap(s))
	}
	pool.Put(append(s, 1, 2, 3, 4, 5)) // grown past 4, dropped

	_ = pool.Get()
	if created < 2 {
		t.Errorf("expected a fresh value after dropping the grown one, created=%d", created)
	}
}

func TestBufferPool_GetIsEmpty(t *testing.T) {
	pool := NewBufferPool(16, 64)

	buf := pool.Get()
	buf.WriteString("hello")
	pool.Put(buf)

	again := pool.Get()
	if again.Len() != 0 {
		t.Errorf("expected empty buffer, got %q", again.String())
	}
}

func TestBufferPool_DropsOversized(t *testing.T) {
	pool := NewBufferPool(16, 64)

	big := pool.Get()
	big.Write(bytes.Repeat([]byte("x"), 1024))
	pool.Put(big)

	if got := pool.Get(); got == big {
		t.Error("oversized buffer must not be reused")
	}
}

func TestBufferPool_ReadAll(t *testing.T) {
	pool := NewBufferPool(8, 1<<10)

	body, err := pool.ReadAll(strings.NewReader(`{"data":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"data":[]}` {
		t.Errorf("unexpected body %q", body)
	}
	if cap(body) != len(body) {
		t.Errorf("expected exact copy, len=%d cap=%d", len(body), cap(body))
	}

	// the returned slice must not alias the pooled buffer
	next, _ := pool.ReadAll(strings.NewReader("zzzzzzzzzzz"))
	if string(body) != `{"data":[]}` || string(next) != "zzzzzzzzzzz" {
		t.Errorf("pooled buffer leaked into result: %q %q", body, next)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestBufferPool_ReadAllError(t *testing.T) {
	pool := NewBufferPool(8, 1<<10)
	if _, err := pool.ReadAll(io.MultiReader(strings.NewReader("ab"), failingReader{})); err == nil {
		t.Error("expected read error")
	}
}
