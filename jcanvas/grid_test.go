package jcanvas

import (
	"reflect"
	"testing"
)

func TestGridFill(t *testing.T) {
	g := newGrid(4, 3)
	if p, ok := g.firstUninitialized(); !ok || p.X() != 0 || p.Y() != 0 {
		t.Fatalf("Empty grid: first uninitialized (%d,%d) %v", p.X(), p.Y(), ok)
	}

	g.fill(1, 1, 1, 5, 7, 2, 2)
	if got, want := g.Cell(2, 2), (Cell{Source: 1, X: 6, Y: 8, Initialized: true}); got != want {
		t.Errorf("Cell(2,2) = %+v, want %+v", got, want)
	}
	if g.Cell(3, 2).Initialized || g.Cell(0, 1).Initialized {
		t.Errorf("fill wrote outside its rectangle")
	}

	g.fill(0, 0, 0, 0, 0, 4, 3)
	if _, ok := g.firstUninitialized(); ok {
		t.Errorf("Fully drawn grid reports uninitialized cells")
	}
}

func TestGridCopyWithin(t *testing.T) {
	g := newGrid(5, 1)
	g.fill(0, 0, 0, 0, 0, 5, 1)
	g.copyWithin(1, 0, 0, 0, 4, 1)

	var xs []int
	for x := 0; x < g.Width(); x++ {
		xs = append(xs, g.Cell(x, 0).X)
	}
	if want := []int{0, 0, 1, 2, 3}; !reflect.DeepEqual(xs, want) {
		t.Errorf("Overlapping copy gave %v, want %v", xs, want)
	}
}

func TestGridIndexPanics(t *testing.T) {
	g := newGrid(2, 2)
	for _, p := range [][2]int{{-1, 0}, {2, 0}, {0, 2}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("index(%d,%d) did not panic", p[0], p[1])
				}
			}()
			g.index(p[0], p[1])
		}()
	}
}
