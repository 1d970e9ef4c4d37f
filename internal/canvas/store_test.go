package canvas

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"advisory-canvas/internal/models"
)

func line(id string, x1, y1, x2, y2 float64) *models.Shape {
	return &models.Shape{
		ID:        id,
		Type:      models.ShapeTrendline,
		Geometry:  models.Geometry{Points: []models.Point{{X: x1, Y: y1}, {X: x2, Y: y2}}},
		Style:     models.DefaultStyle(),
		Transform: models.IdentityTransform(),
	}
}

func ids(shapes []*models.Shape) []string {
	out := make([]string, len(shapes))
	for i, s := range shapes {
		out[i] = s.ID
	}
	return out
}

func TestStoreUpsertKeepsZOrder(t *testing.T) {
	st := NewStore()
	st.Upsert(line("a", 0, 0, 1, 1))
	st.Upsert(line("b", 0, 0, 2, 2))
	st.Upsert(line("c", 0, 0, 3, 3))
	st.Upsert(line("a", 5, 5, 6, 6))

	if got := ids(st.List()); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v, want [a b c]", got)
	}
	a, _ := st.Get("a")
	if a.Geometry.Points[0].X != 5 {
		t.Errorf("replace did not update geometry: %+v", a.Geometry)
	}
	if last, _ := st.Last(); last.ID != "c" {
		t.Errorf("Last = %s, want c", last.ID)
	}
}

func TestStoreNormalizesZeroTransform(t *testing.T) {
	st := NewStore()
	s := line("a", 0, 0, 1, 1)
	s.Transform = models.Transform{X: 3}
	st.Upsert(s)

	got, _ := st.Get("a")
	want := models.Transform{X: 3, ScaleX: 1, ScaleY: 1}
	if got.Transform != want {
		t.Errorf("transform = %+v, want %+v", got.Transform, want)
	}
}

func TestStoreDoesNotAlias(t *testing.T) {
	st := NewStore()
	s := line("a", 0, 0, 1, 1)
	st.Upsert(s)
	s.Geometry.Points[0].X = 99

	got, _ := st.Get("a")
	if got.Geometry.Points[0].X != 0 {
		t.Error("store aliased caller geometry")
	}
	got.Geometry.Points[1].X = 42
	again, _ := st.Get("a")
	if again.Geometry.Points[1].X != 1 {
		t.Error("Get returned an alias")
	}
}

func TestStoreNoOps(t *testing.T) {
	st := NewStore()
	if st.Remove("missing") {
		t.Error("Remove of absent id reported a change")
	}
	if n := st.Clear(); n != 0 {
		t.Errorf("Clear of empty store dropped %d", n)
	}
	st.Upsert(nil)
	st.Upsert(&models.Shape{Type: models.ShapeTrendline})
	if st.Len() != 0 {
		t.Errorf("shapes without id were stored")
	}
	if _, ok := st.Last(); ok {
		t.Error("Last on empty store")
	}
}

func TestStorePrimitivesFollowZOrder(t *testing.T) {
	st := NewStore()
	arrow := line("arrow", 0, 0, 100, 0)
	arrow.Type = models.ShapeArrow
	st.Upsert(arrow)
	st.Upsert(line("tl", 0, 10, 50, 10))

	prims := st.Primitives()
	if len(prims) != 3 {
		t.Fatalf("got %d primitives, want 3 (shaft, head, line)", len(prims))
	}
	if prims[0].ShapeID != "arrow" || prims[2].ShapeID != "tl" {
		t.Errorf("unexpected order: %s %s %s", prims[0].ShapeID, prims[1].ShapeID, prims[2].ShapeID)
	}
}

func TestStoreTopmostAt(t *testing.T) {
	st := NewStore()
	st.Upsert(line("low", 0, 50, 200, 50))
	st.Upsert(line("high", 100, 0, 100, 100))

	if id, ok := st.TopmostAt(models.Point{X: 100, Y: 50}, 3); !ok || id != "high" {
		t.Errorf("TopmostAt crossing = %q %v, want high", id, ok)
	}
	if id, ok := st.TopmostAt(models.Point{X: 20, Y: 51}, 3); !ok || id != "low" {
		t.Errorf("TopmostAt = %q %v, want low", id, ok)
	}
	if _, ok := st.TopmostAt(models.Point{X: 300, Y: 300}, 3); ok {
		t.Error("expected miss")
	}
}

func TestApplyIdempotentDeleteAndClear(t *testing.T) {
	build := func() *Store {
		st := NewStore()
		st.Upsert(line("a", 0, 0, 1, 1))
		st.Upsert(line("b", 0, 0, 2, 2))
		return st
	}
	del := models.Change{Kind: models.ChangeDelete, ID: "a"}

	once, twice := build(), build()
	Apply(once, del)
	Apply(twice, del)
	if Apply(twice, del) {
		t.Error("second delete reported a change")
	}
	if !reflect.DeepEqual(once.List(), twice.List()) {
		t.Errorf("delete not idempotent: %v vs %v", ids(once.List()), ids(twice.List()))
	}

	clr := models.Change{Kind: models.ChangeClear}
	Apply(once, clr)
	Apply(twice, clr)
	Apply(twice, clr)
	if once.Len() != 0 || twice.Len() != 0 {
		t.Errorf("clear not idempotent: %d vs %d", once.Len(), twice.Len())
	}
}

func TestApplyClearThenAdd(t *testing.T) {
	st := NewStore()
	st.Upsert(line("old-1", 0, 0, 1, 1))
	st.Upsert(line("old-2", 0, 0, 1, 1))

	Apply(st, models.Change{Kind: models.ChangeClear})
	Apply(st, models.Change{Kind: models.ChangeAdd, Shape: line("new", 0, 0, 5, 5)})

	if got := ids(st.List()); !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("store = %v, want [new]", got)
	}
}

func TestApplyIgnoresIncompleteChange(t *testing.T) {
	st := NewStore()
	if Apply(st, models.Change{Kind: models.ChangeAdd}) {
		t.Error("add without shape applied")
	}
	if Apply(st, models.Change{Kind: "rename"}) {
		t.Error("unknown kind applied")
	}
}

func TestRegistryKeepsChartsApart(t *testing.T) {
	r := NewRegistry()
	aapl := models.ChartKey{Ticker: "AAPL", Period: "1D"}
	msft := models.ChartKey{Ticker: "MSFT", Period: "1D"}
	r.Store(aapl).Upsert(line("a", 0, 0, 1, 1))
	r.Store(msft)

	if r.Store(msft).Len() != 0 {
		t.Error("shape leaked across charts")
	}
	if _, ok := r.Lookup(models.ChartKey{Ticker: "TSLA", Period: "1D"}); ok {
		t.Error("Lookup created a store")
	}
	if got := r.Keys(); len(got) != 2 || got[0] != aapl {
		t.Errorf("Keys = %v", got)
	}
}

// Property: a trailing delete or clear applied twice leaves the same store
// as applying it once, whatever came before.
func TestProperty_DeleteAndClearIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("repeated removal is a no-op", prop.ForAll(
		func(ops []int, target int) bool {
			st := NewStore()
			for i, op := range ops {
				id := fmt.Sprintf("s%d", op%5)
				switch op % 7 {
				case 0:
					Apply(st, models.Change{Kind: models.ChangeClear})
				case 1, 2:
					Apply(st, models.Change{Kind: models.ChangeDelete, ID: id})
				default:
					Apply(st, models.Change{Kind: models.ChangeAdd, Shape: line(id, float64(i), 0, float64(op), 1)})
				}
			}

			removal := models.Change{Kind: models.ChangeClear}
			if target < 5 {
				removal = models.Change{Kind: models.ChangeDelete, ID: fmt.Sprintf("s%d", target)}
			}
			Apply(st, removal)
			once := st.List()
			Apply(st, removal)
			return reflect.DeepEqual(once, st.List())
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
