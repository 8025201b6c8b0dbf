package callgate

import "testing"

func TestLimitedAllocator(t *testing.T) {
	a := NewLimitedAllocator(100)

	if !a.Alloc(60) {
		t.Fatal("expected first allocation to succeed")
	}
	if a.Alloc(50) {
		t.Fatal("allocation past limit should fail")
	}
	if !a.Alloc(40) {
		t.Fatal("allocation up to limit should succeed")
	}
	if got := a.InUse(); got != 100 {
		t.Errorf("InUse = %d, want 100", got)
	}

	a.Free(60)
	if got := a.InUse(); got != 40 {
		t.Errorf("InUse after free = %d, want 40", got)
	}
	if got := a.Peak(); got != 100 {
		t.Errorf("Peak = %d, want 100", got)
	}
}

func TestLimitedAllocator_Unlimited(t *testing.T) {
	a := &LimitedAllocator{}
	for i := 0; i < 10; i++ {
		if !a.Alloc(1 << 20) {
			t.Fatalf("unlimited allocator refused allocation %d", i)
		}
	}
	if a.Alloc(-1) {
		t.Error("negative size must be refused")
	}
}

func TestLimitedAllocator_FreeNeverNegative(t *testing.T) {
	a := NewLimitedAllocator(10)
	a.Free(5)
	if got := a.InUse(); got != 0 {
		t.Errorf("InUse = %d, want 0", got)
	}
	if got := a.Underflows(); got != 1 {
		t.Errorf("Underflows = %d, want 1", got)
	}

	a.Alloc(4)
	a.Free(4)
	if got := a.Underflows(); got != 1 {
		t.Errorf("balanced free counted as underflow: %d", got)
	}
}

func TestFailingAllocator(t *testing.T) {
	a := &FailingAllocator{After: 2}
	if !a.Alloc(1) || !a.Alloc(1) {
		t.Fatal("first two allocations should succeed")
	}
	if a.Alloc(1) {
		t.Fatal("third allocation should fail")
	}
	if got := a.Failures(); got != 1 {
		t.Errorf("Failures = %d, want 1", got)
	}
}
