// Package extract walks loss report markup and yields one record per
// documented loss case.
//
// The report nests cases four levels deep:
//
//	article body
//	  data section <div>
//	    <h3> category heading "Tanks (123, of which destroyed: ...)"
//	    <ul>
//	      <li> model "<img flag> 12 T-72B3 main battle tank: <a>...</a> <a>...</a>"
//	        <a href="evidence"> "(1, 2 and 3, destroyed)"
//
// A single anchor may document several cases. Extraction never fails on a
// malformed node: it emits a Skip for that node and continues with its
// siblings.
package extract

import (
	"fmt"
	"iter"

	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Result is either an extracted record or a skipped node, never both.
type Result struct {
	Record *model.RawLossRecord
	Skip   *Skip
}

// Skip explains why a node contributed no records.
type Skip struct {
	Reason string
	Path   string // Location of the node in the document
}

func (s Skip) String() string {
	return fmt.Sprintf("%s at %s", s.Reason, s.Path)
}

func recordResult(r model.RawLossRecord) Result {
	return Result{Record: &r}
}

func skipResult(n *html.Node, format string, args ...any) Result {
	path := ""
	if n != nil {
		path = nodePath(n)
	}
	return Result{Skip: &Skip{Reason: fmt.Sprintf(format, args...), Path: path}}
}

// safely runs fn and turns a panic into an error, so a malformed subtree
// cannot take down its siblings.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("unexpected structure: %v", r)
		}
	}()
	return fn()
}

// Collect drains a result sequence, logging every skip.
func Collect(seq iter.Seq[Result], logger *zap.Logger) ([]model.RawLossRecord, []Skip) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var records []model.RawLossRecord
	var skips []Skip
	for res := range seq {
		switch {
		case res.Record != nil:
			records = append(records, *res.Record)
		case res.Skip != nil:
			skips = append(skips, *res.Skip)
			logger.Warn("skipped node",
				zap.String("reason", res.Skip.Reason),
				zap.String("path", res.Skip.Path))
		}
	}
	return records, skips
}
