package debugger

import (
	"sync"

	"github.com/jsaot/debug/pkg/types"
)

// CallFrame is a read-only snapshot of one reconstructed stack level. A
// frame with the empty source location and no method stands in for a run of
// library or native code with no source mapping.
type CallFrame struct {
	location types.SourceLocation
	method   *types.MethodReference
	vars     *VariableView
}

// Location returns the frame's resolved source coordinate; it is the empty
// location when the frame has no source mapping.
func (f *CallFrame) Location() types.SourceLocation { return f.location }

// Method returns the resolved method, or nil for unmapped frames.
func (f *CallFrame) Method() *types.MethodReference { return f.method }

// Variables returns the frame's variable-name-translation view.
func (f *CallFrame) Variables() *VariableView { return f.vars }

// Info returns a snapshot for external surfaces.
func (f *CallFrame) Info() types.FrameInfo {
	info := types.FrameInfo{Method: f.method}
	if !f.location.IsEmpty() {
		loc := f.location
		info.Location = &loc
	}
	for _, v := range f.vars.Variables() {
		info.Variables = append(info.Variables, types.VariableInfo{
			Name:        v.Raw.Name,
			Value:       v.Raw.Value,
			SourceNames: v.SourceNames,
		})
	}
	return info
}

// Variable pairs a raw runtime variable with the source-level names it may
// correspond to (several when inlining made the mapping ambiguous).
type Variable struct {
	Raw         RuntimeVariable
	SourceNames []string
}

// VariableView lazily translates a frame's raw runtime variables into their
// source-level meanings. Translation runs at most once; the view stays
// consistent even when read concurrently.
type VariableView struct {
	debugger *Debugger
	location ScriptLocation
	raw      []RuntimeVariable

	once     sync.Once
	resolved []Variable
}

func newVariableView(d *Debugger, loc ScriptLocation, raw []RuntimeVariable) *VariableView {
	return &VariableView{debugger: d, location: loc, raw: raw}
}

// Variables returns the translated variable set.
func (v *VariableView) Variables() []Variable {
	v.once.Do(func() {
		v.resolved = make([]Variable, len(v.raw))
		for i, raw := range v.raw {
			v.resolved[i] = Variable{
				Raw:         raw,
				SourceNames: v.debugger.MapVariable(raw.Name, v.location),
			}
		}
	})
	return v.resolved
}

// Names returns the translated names of every variable in the frame; raw
// names without mapping data are passed through unchanged.
func (v *VariableView) Names() []string {
	var names []string
	for _, variable := range v.Variables() {
		if len(variable.SourceNames) == 0 {
			names = append(names, variable.Raw.Name)
			continue
		}
		names = append(names, variable.SourceNames...)
	}
	return names
}
