package chain

import "testing"

func idsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInstallHeadIsNewestFirst(t *testing.T) {
	c := New()
	c.Lock()
	c.InstallHeadLocked(Node{ID: 1})
	c.InstallHeadLocked(Node{ID: 2})
	c.InstallHeadLocked(Node{ID: 3})
	c.Unlock()

	if !idsEqual(c.IDs(), []int{3, 2, 1}) {
		t.Fatalf("expected newest-first order, got %v", c.IDs())
	}
}

func TestOldestRequiresTwoSegments(t *testing.T) {
	c := New()
	if _, _, ok := c.Oldest(); ok {
		t.Fatal("expected no oldest pair on empty chain")
	}
	c.Lock()
	c.InstallHeadLocked(Node{ID: 1})
	c.Unlock()
	if _, _, ok := c.Oldest(); ok {
		t.Fatal("expected no oldest pair with only one segment")
	}
	c.Lock()
	c.InstallHeadLocked(Node{ID: 2})
	c.Unlock()
	older, newer, ok := c.Oldest()
	if !ok || older != 1 || newer != 2 {
		t.Fatalf("expected (1, 2, true), got (%d, %d, %v)", older, newer, ok)
	}
}

func TestIsBottomOfChain(t *testing.T) {
	c := New()
	c.Lock()
	c.InstallHeadLocked(Node{ID: 1})
	c.InstallHeadLocked(Node{ID: 2})
	c.Unlock()
	if !c.IsBottomOfChain(1, 2) {
		t.Fatal("expected a two-segment chain to be its own bottom")
	}

	c.Lock()
	c.InstallHeadLocked(Node{ID: 3})
	c.Unlock()
	if c.IsBottomOfChain(1, 2) {
		t.Fatal("expected a three-segment chain not to report (1,2) as the bottom")
	}
}

func TestSwapByIDPreservesPosition(t *testing.T) {
	c := New()
	c.Lock()
	c.InstallHeadLocked(Node{ID: 1})
	c.InstallHeadLocked(Node{ID: 2})
	c.InstallHeadLocked(Node{ID: 3})
	// chain is [3, 2, 1]; merge the oldest two (1, 2) into 4.
	c.SwapByIDLocked([2]int{1, 2}, Node{ID: 4})
	c.Unlock()

	if !idsEqual(c.IDs(), []int{3, 4}) {
		t.Fatalf("expected [3, 4], got %v", c.IDs())
	}
}

func TestLoadReplacesContents(t *testing.T) {
	c := New()
	c.Lock()
	c.InstallHeadLocked(Node{ID: 1})
	c.Unlock()
	c.Load([]Node{{ID: 9}, {ID: 8}, {ID: 7}})
	if !idsEqual(c.IDs(), []int{9, 8, 7}) {
		t.Fatalf("expected loaded ids, got %v", c.IDs())
	}
}
