package nowplan

import (
	json "github.com/goccy/go-json"

	"github.com/toschoo/nowdb-go/record"
)

// summaryView is the JSON-serializable shape of a Plan's Summary
// node, exported for the (out-of-scope) SQL/session layer to render
// an EXPLAIN-style description without reaching into nowexpr internals.
type summaryView struct {
	NodeCount  int    `json:"nodeCount"`
	ReaderKind string `json:"readerKind"`
	Target     string `json:"target"`
	Index      string `json:"index,omitempty"`
}

var readerKindNames = map[ReaderKind]string{
	StypeFS:     "fullscan",
	StypeSearch: "search",
	StypeFrange: "frange",
	StypeMrange: "mrange",
	StypeKrange: "krange",
	StypeCrange: "crange",
}

// Summary renders the plan's Summary and Reader nodes as JSON.
func (p *Plan) Summary() ([]byte, error) {
	view := summaryView{}
	for _, n := range p.Nodes {
		switch n.Kind {
		case NodeSummary:
			view.NodeCount = n.NodeCount
		case NodeReader:
			view.ReaderKind = readerKindNames[n.Stype]
			if n.Target == record.TargetVertex {
				view.Target = "vertex"
			} else {
				view.Target = "edge"
			}
			if n.Index != nil {
				view.Index = n.Index.Name
			}
		}
	}
	return json.Marshal(view)
}
