package taskgroup

import (
	"sync/atomic"
	"testing"
)

func TestGoAndWait(t *testing.T) {
	g := New(nil)
	var done atomic.Int64
	for i := 0; i < 10; i++ {
		g.Go("t", func() { done.Add(1) })
	}
	g.Wait()
	if done.Load() != 10 {
		t.Errorf("completed = %d, want 10", done.Load())
	}
	if g.Active() != 0 {
		t.Errorf("active = %d after Wait, want 0", g.Active())
	}
}

func TestPanicIsAbsorbed(t *testing.T) {
	g := New(nil)
	g.Go("boom", func() { panic("boom") })
	g.Go("ok", func() {})
	g.Wait() // must not deadlock or re-panic
	if g.Active() != 0 {
		t.Errorf("active = %d, want 0 after panic", g.Active())
	}
}
