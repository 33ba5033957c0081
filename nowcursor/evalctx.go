package nowcursor

import (
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/nowtext"
	"github.com/toschoo/nowdb-go/record"
)

// EvalContext is the nowexpr.Context a Cursor hands to every Eval
// call outside of VRow-assembled rows: it resolves an edge Field
// straight off the Model's PEdge slot assignment (edges carry every
// declared property in one physical record, at a fixed byte offset),
// and resolves a vertex Field to the one fixed slot every scattered
// vertex record carries its single property's value at — meaningful
// only when the caller already knows the record's own PropID matches,
// since vertex WHERE/projection otherwise always goes through a VRow
// (which implements nowexpr.Context itself, over its own assembled
// slot layout).
type EvalContext struct {
	model    *nowmodel.Model
	text     *nowtext.Dict
	needText bool
}

// NewEvalContext builds an evaluation context over model and text.
// needText controls whether Field evaluation resolves a text
// surrogate's string eagerly (projection needs it; a pure numeric
// filter comparison does not).
func NewEvalContext(model *nowmodel.Model, text *nowtext.Dict, needText bool) *EvalContext {
	return &EvalContext{model: model, text: text, needText: needText}
}

func (c *EvalContext) ResolveField(target record.TargetKind, roleID uint32, propID uint64) (int, record.ValueType, error) {
	if target == record.TargetVertex {
		p, err := c.model.GetPropByID(propID)
		if err != nil {
			return 0, 0, err
		}
		return record.Value, p.Value, nil
	}
	pe, err := c.model.GetPedgeByID(propID)
	if err != nil {
		return 0, 0, err
	}
	return int(pe.Off), pe.Value, nil
}

func (c *EvalContext) ResolveText(key uint64) string { return c.text.GetText(key) }
func (c *EvalContext) NeedText() bool                { return c.needText }
