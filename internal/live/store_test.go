package live

import (
	"testing"
	"time"

	"github.com/iliyamo/storefront-live/internal/model"
)

func order(id string, st model.OrderStatus, version uint64) model.Order {
	return model.Order{ID: id, Number: "N" + id, Status: st, Version: version}
}

func TestMergeInsertsNewestFirst(t *testing.T) {
	s := NewStore[model.Order]()
	if r := s.Merge(order("a", model.StatusPending, 1)); r != Inserted {
		t.Fatalf("first merge = %s", r)
	}
	s.Merge(order("b", model.StatusPending, 1))
	got := s.Snapshot()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("order = %+v", got)
	}
}

func TestMergeVersionGate(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(order("a", model.StatusPreparing, 3))

	if r := s.Merge(order("a", model.StatusPending, 2)); r != Stale {
		t.Fatalf("older version = %s, want stale", r)
	}
	if r := s.Merge(order("a", model.StatusDelivered, 4)); r != Updated {
		t.Fatalf("newer version = %s, want updated", r)
	}
	if o, _ := s.Get("a"); o.Status != model.StatusDelivered {
		t.Fatalf("status = %s", o.Status)
	}
}

func TestMergeReplayIsIdempotent(t *testing.T) {
	cases := []model.Order{
		order("a", model.StatusShipped, 5),
		{ID: "b", Status: model.StatusShipped, UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "c", Status: model.StatusShipped},
	}
	for _, ev := range cases {
		s := NewStore[model.Order]()
		s.Merge(ev)
		for i := 0; i < 5; i++ {
			if r := s.Merge(ev); r != Unchanged {
				t.Fatalf("%s replay %d = %s, want unchanged", ev.ID, i, r)
			}
		}
		if got, _ := s.Get(ev.ID); got.Status != ev.Status || s.Len() != 1 {
			t.Fatalf("%s: got %+v len %d", ev.ID, got, s.Len())
		}
	}
}

func TestMergeWithoutRevisionIsLastWriteWins(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(model.Order{ID: "a", Status: model.StatusDelivered})
	if r := s.Merge(model.Order{ID: "a", Status: model.StatusPending}); r != Updated {
		t.Fatalf("got %s", r)
	}
	if o, _ := s.Get("a"); o.Status != model.StatusPending {
		t.Fatalf("last write lost: %s", o.Status)
	}
}

func TestMergeRejectsEmptyKey(t *testing.T) {
	s := NewStore[model.User]()
	if r := s.Merge(model.User{Name: "ghost"}); r != Stale || s.Len() != 0 {
		t.Fatalf("got %s len %d", r, s.Len())
	}
}

// An optimistic write and a push of the state it was based on land in the
// same tick: the optimistic value is kept until a strictly newer server copy
// or the commit arrives, whichever order they come in.
func TestOptimisticTieBreak(t *testing.T) {
	base := order("a", model.StatusDelivered, 7)
	shipped := func(o model.Order) model.Order { o.Status = model.StatusShipped; return o }

	t.Run("push of base revision", func(t *testing.T) {
		s := NewStore[model.Order]()
		s.Merge(base)
		p := s.Optimistic("a", shipped)
		if r := s.Merge(base); r != Unchanged {
			t.Fatalf("stale echo = %s", r)
		}
		if o, _ := s.Get("a"); o.Status != model.StatusShipped {
			t.Fatalf("optimistic value lost: %s", o.Status)
		}
		server := order("a", model.StatusShipped, 8)
		if r := p.Commit(server); r != Updated {
			t.Fatalf("commit = %s", r)
		}
		if r := s.Merge(server); r != Unchanged {
			t.Fatalf("echo after commit = %s", r)
		}
	})

	t.Run("push before commit", func(t *testing.T) {
		s := NewStore[model.Order]()
		s.Merge(base)
		p := s.Optimistic("a", shipped)
		s.Merge(order("a", model.StatusShipped, 8))
		if r := p.Commit(order("a", model.StatusShipped, 8)); r != Unchanged {
			t.Fatalf("commit after newer push = %s", r)
		}
		if p.Rollback() {
			t.Fatal("rollback after commit restored a value")
		}
		if o, _ := s.Get("a"); o.Status != model.StatusShipped || o.Version != 8 {
			t.Fatalf("got %+v", o)
		}
	})
}

func TestRollbackRestoresPrior(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(order("a", model.StatusPreparing, 2))
	p := s.Optimistic("a", func(o model.Order) model.Order { o.Status = model.StatusDelivered; return o })
	if !p.Rollback() {
		t.Fatal("rollback did nothing")
	}
	if o, _ := s.Get("a"); o.Status != model.StatusPreparing {
		t.Fatalf("status after rollback = %s", o.Status)
	}

	fresh := s.Optimistic("new", func(o model.Order) model.Order { o.ID = "new"; return o })
	if s.Len() != 2 {
		t.Fatalf("optimistic insert missing")
	}
	fresh.Rollback()
	if _, ok := s.Get("new"); ok || s.Len() != 1 {
		t.Fatal("optimistic insert survived rollback")
	}
}

func TestRollbackKeepsNewerServerCopy(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(order("a", model.StatusPreparing, 2))
	p := s.Optimistic("a", func(o model.Order) model.Order { o.Status = model.StatusDelivered; return o })
	s.Merge(order("a", model.StatusDelivered, 3))
	if p.Rollback() {
		t.Fatal("rollback clobbered a newer server copy")
	}
	if o, _ := s.Get("a"); o.Version != 3 {
		t.Fatalf("got %+v", o)
	}
}

func TestOnChangeSkipsOptimistic(t *testing.T) {
	s := NewStore[model.Order]()
	var seen []model.OrderStatus
	s.OnChange(func(o model.Order) { seen = append(seen, o.Status) })
	s.Merge(order("a", model.StatusPending, 1))
	p := s.Optimistic("a", func(o model.Order) model.Order { o.Status = model.StatusPreparing; return o })
	p.Commit(order("a", model.StatusPreparing, 2))
	s.Merge(order("a", model.StatusPreparing, 2))
	if len(seen) != 2 || seen[0] != model.StatusPending || seen[1] != model.StatusPreparing {
		t.Fatalf("OnChange saw %v", seen)
	}
}

func TestPatchAndRemove(t *testing.T) {
	s := NewStore[model.User]()
	s.Merge(model.User{ID: "u1", Name: "Noa", Version: 4})
	u, ok := s.Patch("u1", func(u model.User) model.User { u.Online = true; return u })
	if !ok || !u.Online || u.Version != 4 {
		t.Fatalf("patch got %+v %v", u, ok)
	}
	if _, ok := s.Patch("missing", func(u model.User) model.User { return u }); ok {
		t.Fatal("patched a missing key")
	}
	if !s.Remove("u1") || s.Remove("u1") || s.Len() != 0 || len(s.Snapshot()) != 0 {
		t.Fatal("remove misbehaved")
	}
}

func TestCommitMovesEntryToServerKey(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(model.Order{ID: "z", Number: "1", Status: model.StatusPending, Version: 1})
	s.Merge(model.Order{Number: "1042", Status: model.StatusDelivered})
	p := s.Optimistic("#1042", func(o model.Order) model.Order { o.Status = model.StatusShipped; return o })

	if r := p.Commit(model.Order{ID: "abc", Number: "1042", Status: model.StatusShipped, Version: 4}); r != Updated {
		t.Fatalf("commit = %s", r)
	}
	if _, ok := s.Get("#1042"); ok {
		t.Fatal("entry still held under the order number")
	}
	got := s.Snapshot()
	if len(got) != 2 || got[0].ID != "abc" || got[0].Version != 4 {
		t.Fatalf("snapshot %+v", got)
	}
}

func TestRekey(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(model.Order{Number: "7", Status: model.StatusPending})
	s.Merge(model.Order{Number: "8", Status: model.StatusPending})
	p := s.Optimistic("#7", func(o model.Order) model.Order { o.Status = model.StatusPreparing; return o })

	if !s.Rekey("#7", "o7") {
		t.Fatal("rekey did nothing")
	}
	if got := s.Snapshot(); got[1].Status != model.StatusPreparing {
		t.Fatalf("position or value lost: %+v", got)
	}
	if !p.Rollback() {
		t.Fatal("rollback lost track of the moved entry")
	}
	if o, ok := s.Get("o7"); !ok || o.Status != model.StatusPending {
		t.Fatalf("after rollback %+v %v", o, ok)
	}

	s.Merge(model.Order{ID: "o8", Number: "8", Status: model.StatusPending, Version: 1})
	if !s.Rekey("#8", "o8") || s.Len() != 2 {
		t.Fatalf("taken key kept the duplicate: %+v", s.Snapshot())
	}
	if s.Rekey("#missing", "x") {
		t.Fatal("rekey of a missing key")
	}
}

func TestReplaceKeepsOptimisticEcho(t *testing.T) {
	s := NewStore[model.Order]()
	s.Merge(order("a", model.StatusDelivered, 5))
	p := s.Optimistic("a", func(o model.Order) model.Order { o.Status = model.StatusShipped; return o })
	if r := s.Replace(order("a", model.StatusShipped, 5)); r != Unchanged {
		t.Fatalf("echo = %s", r)
	}
	if r := p.Commit(order("a", model.StatusShipped, 6)); r != Updated {
		t.Fatalf("commit = %s", r)
	}
}
