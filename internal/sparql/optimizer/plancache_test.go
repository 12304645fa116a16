package optimizer

import "testing"

type fakePlan struct{ id int }

func (p *fakePlan) planNode() {}

func TestPlanCacheHitAndMiss(t *testing.T) {
	c := NewPlanCache(2)

	key := HashQuery("SELECT * WHERE { ?s ?p ?o }")
	if _, ok := c.Get(key, 1); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	c.Put(key, &fakePlan{id: 1}, 1)
	plan, ok := c.Get(key, 1)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if plan.(*fakePlan).id != 1 {
		t.Fatalf("unexpected plan returned: %+v", plan)
	}
}

func TestPlanCacheStatsVersionInvalidates(t *testing.T) {
	c := NewPlanCache(2)
	key := HashQuery("SELECT * WHERE { ?s ?p ?o }")

	c.Put(key, &fakePlan{id: 1}, 1)
	if _, ok := c.Get(key, 2); ok {
		t.Fatal("expected a miss once the statistics version advances")
	}
	if c.Len() != 0 {
		t.Fatalf("expected the stale entry to be evicted, cache still has %d entries", c.Len())
	}
}

func TestPlanCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPlanCache(2)

	k1 := HashQuery("query one")
	k2 := HashQuery("query two")
	k3 := HashQuery("query three")

	c.Put(k1, &fakePlan{id: 1}, 0)
	c.Put(k2, &fakePlan{id: 2}, 0)
	// Touch k1 so k2 becomes the least-recently-used entry.
	c.Get(k1, 0)
	c.Put(k3, &fakePlan{id: 3}, 0)

	if _, ok := c.Get(k2, 0); ok {
		t.Fatal("expected k2 to have been evicted")
	}
	if _, ok := c.Get(k1, 0); !ok {
		t.Fatal("expected k1 to survive eviction")
	}
	if _, ok := c.Get(k3, 0); !ok {
		t.Fatal("expected k3 to survive insertion")
	}
}
