package container

import "testing"

func TestNewListIsEmpty(t *testing.T) {
	l := New[string]()
	if l.Len() != 0 {
		t.Errorf("New() Len = %d, want 0", l.Len())
	}
	if l.Front() != None {
		t.Errorf("Front() on empty list = %v, want None", l.Front())
	}
	if l.Back() != None {
		t.Errorf("Back() on empty list = %v, want None", l.Back())
	}
}

func TestPushBackOrder(t *testing.T) {
	l := New[string]()
	l.PushBack("a")
	l.PushBack("b")
	l.PushBack("c")

	got := l.Values()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPushFrontOrder(t *testing.T) {
	l := New[int]()
	l.PushFront(1)
	l.PushFront(2)
	l.PushFront(3)

	got := l.Values()
	want := []int{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRemoveMiddle(t *testing.T) {
	l := New[string]()
	l.PushBack("a")
	middle := l.PushBack("b")
	l.PushBack("c")

	v, ok := l.Remove(middle)
	if !ok || v != "b" {
		t.Fatalf("Remove(middle) = %q, %v, want \"b\", true", v, ok)
	}
	if l.Len() != 2 {
		t.Errorf("Len after remove = %d, want 2", l.Len())
	}

	got := l.Values()
	if got[0] != "a" || got[1] != "c" {
		t.Errorf("Values() after remove = %v, want [a c]", got)
	}
}

func TestRemoveTwiceIsNoop(t *testing.T) {
	l := New[string]()
	h := l.PushBack("a")

	if _, ok := l.Remove(h); !ok {
		t.Fatal("first Remove should succeed")
	}
	if _, ok := l.Remove(h); ok {
		t.Error("second Remove of same handle should fail")
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestHandleNotReusedWhileLive(t *testing.T) {
	l := New[string]()
	a := l.PushBack("a")
	b := l.PushBack("b")

	if a == b {
		t.Fatal("distinct live elements share a handle")
	}

	// A freed slot may be reused for a later insert.
	l.Remove(a)
	c := l.PushBack("c")
	if v, ok := l.Value(c); !ok || v != "c" {
		t.Errorf("Value(c) = %q, %v, want \"c\", true", v, ok)
	}
	if v, ok := l.Value(b); !ok || v != "b" {
		t.Errorf("Value(b) = %q, %v, want \"b\", true", v, ok)
	}
}

func TestNextPrevTraversal(t *testing.T) {
	l := New[int]()
	first := l.PushBack(1)
	l.PushBack(2)
	last := l.PushBack(3)

	// Forward
	var forward []int
	for h := first; h != None; h = l.Next(h) {
		v, _ := l.Value(h)
		forward = append(forward, v)
	}
	if len(forward) != 3 || forward[0] != 1 || forward[2] != 3 {
		t.Errorf("forward traversal = %v, want [1 2 3]", forward)
	}

	// Backward
	var backward []int
	for h := last; h != None; h = l.Prev(h) {
		v, _ := l.Value(h)
		backward = append(backward, v)
	}
	if len(backward) != 3 || backward[0] != 3 || backward[2] != 1 {
		t.Errorf("backward traversal = %v, want [3 2 1]", backward)
	}
}

func TestClear(t *testing.T) {
	l := New[string]()
	h := l.PushBack("a")
	l.PushBack("b")

	l.Clear()

	if l.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", l.Len())
	}
	if _, ok := l.Value(h); ok {
		t.Error("stale handle still resolves after Clear")
	}

	// List must be fully usable after Clear.
	l.PushBack("c")
	if l.Len() != 1 {
		t.Errorf("Len after reuse = %d, want 1", l.Len())
	}
}
