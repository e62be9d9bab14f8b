package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tiltbrush/rtree"
)

// leafOccupancy returns the number of entries in each leaf.
func leafOccupancy(t *rtree.Tree) plotter.Values {
	var vals plotter.Values
	for n := range t.Traverse() {
		if n.IsLeaf() {
			vals = append(vals, float64(len(n.Children)))
		}
	}
	return vals
}

func writeHistogram(path string, t *rtree.Tree) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Entries per leaf (capacity %d)", t.Header.LeafCapacity)
	p.X.Label.Text = "entries"
	p.Y.Label.Text = "leaves"

	h, err := plotter.NewHist(leafOccupancy(t), 20)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	return nil
}
