package queue

import (
	"testing"

	"github.com/kilianp07/liftmpc/core/model"
)

func TestPendingPushRemove(t *testing.T) {
	q := New()
	a := &model.Request{ID: "a", Status: model.StatusAssigned}
	b := &model.Request{ID: "b"}
	if err := q.Push(a); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(b); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(&model.Request{ID: "a"}); err != ErrDuplicate {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if a.Seq != 1 || b.Seq != 2 {
		t.Fatalf("unexpected sequence numbers %d %d", a.Seq, b.Seq)
	}
	if a.Status != model.StatusPending {
		t.Fatalf("push should reset status, got %s", a.Status)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 items")
	}
	if !q.Remove("a") || q.Remove("a") {
		t.Fatal("remove should succeed once")
	}
	list := q.List()
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("unexpected list %v", list)
	}
	if _, ok := q.Get("b"); !ok {
		t.Fatal("expected b to be queued")
	}
}
