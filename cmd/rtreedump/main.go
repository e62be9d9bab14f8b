// Dump a stored R-Tree: the header, then one line per node breadth first.
// Usage: rtreedump [-pebble] [-header id] [-v] [-hist out.png] <path>
// Example: rtreedump -v -hist leaves.png sketch.sidx
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tiltbrush/rtree"
	"github.com/tiltbrush/rtree/pagefile"
	"github.com/tiltbrush/rtree/pebblestore"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rtreedump: ")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rtreedump", flag.ContinueOnError)
	var (
		usePebble = fs.Bool("pebble", false, "read pages from a Pebble directory instead of a page file")
		headerID  = fs.Int64("header", rtree.HeaderPage, "page id of the header")
		verbose   = fs.Bool("v", false, "also print the entries of each leaf")
		histPath  = fs.String("hist", "", "write a histogram of entries per leaf to this PNG file")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: rtreedump [flags] <path>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one path, got %d", fs.NArg())
	}
	path := fs.Arg(0)

	var store rtree.Storage
	if *usePebble {
		ps, err := pebblestore.Open(path, pebblestore.DefaultOptions())
		if err != nil {
			return err
		}
		defer ps.Close()
		store = ps
	} else {
		ms, err := pagefile.Open(path)
		if err != nil {
			return err
		}
		store = ms
	}

	t, err := rtree.Load(store, *headerID)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	dump(stdout, t, *verbose)

	if *histPath != "" {
		if err := writeHistogram(*histPath, t); err != nil {
			return err
		}
	}
	return nil
}

func dump(w io.Writer, t *rtree.Tree, verbose bool) {
	fmt.Fprintln(w, t.Header)
	for n := range t.Traverse() {
		indent := 2 * max(0, int(t.Root.Level)-int(n.Level))
		fmt.Fprintf(w, "%*s%v\n", indent, "", n)
		if !verbose || !n.IsLeaf() {
			continue
		}
		for _, c := range n.Children {
			fmt.Fprintf(w, "%*s  %v\n", indent, "", c)
		}
	}
}
