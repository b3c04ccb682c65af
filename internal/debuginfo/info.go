// Package debuginfo implements the compact binary debug-information record
// produced alongside compiler-generated JavaScript, and the in-memory query
// engine over a decoded record.
//
// A record maps locations, names, and variables in generated output back to
// the original program: five name tables, four single-valued location
// mappings (file, line, class, method), sparse per-variable multi-mappings,
// and per-class field-meaning tables. Records are immutable once decoded;
// all queries are read-only and safe for concurrent use.
package debuginfo

import (
	"sort"
	"strings"

	"github.com/jsaot/debug/pkg/types"
)

// Mapping is an ordered table associating generated locations with a single
// value index. Entries are sorted by (line, column), non-decreasing. The
// three slices are co-indexed and equal in length. A value of -1 denotes
// "unknown".
type Mapping struct {
	Lines   []int
	Columns []int
	Values  []int
}

// Len returns the number of entries.
func (m *Mapping) Len() int { return len(m.Lines) }

// indexOf returns the index of the greatest entry at or preceding
// (line, column), or -1 when no such entry exists.
func (m *Mapping) indexOf(line, column int) int {
	i := sort.Search(len(m.Lines), func(i int) bool {
		if m.Lines[i] != line {
			return m.Lines[i] > line
		}
		return m.Columns[i] > column
	})
	return i - 1
}

// valueAt returns the value index effective at (line, column), or -1.
func (m *Mapping) valueAt(line, column int) int {
	i := m.indexOf(line, column)
	if i < 0 {
		return -1
	}
	return m.Values[i]
}

// MultiMapping associates generated locations with variable-length sets of
// value indices. Entry i owns Data[Offsets[i]:Offsets[i+1]]; Offsets has one
// element more than Lines/Columns.
type MultiMapping struct {
	Lines   []int
	Columns []int
	Offsets []int
	Data    []int
}

// Len returns the number of entries.
func (m *MultiMapping) Len() int { return len(m.Lines) }

func (m *MultiMapping) indexOf(line, column int) int {
	i := sort.Search(len(m.Lines), func(i int) bool {
		if m.Lines[i] != line {
			return m.Lines[i] > line
		}
		return m.Columns[i] > column
	})
	return i - 1
}

// Info is a decoded debug-information record plus the derived indexes built
// by rebuild. It is immutable after construction.
type Info struct {
	FileNames     []string
	ClassNames    []string
	FieldNames    []string
	MethodNames   []string
	VariableNames []string

	FileMapping   Mapping
	LineMapping   Mapping
	ClassMapping  Mapping
	MethodMapping Mapping

	// VariableMappings is sparse: indexed by variable-name index, nil for
	// variables without mapping data. Its length equals len(VariableNames).
	VariableMappings []*MultiMapping

	// ClassMetadata maps, per class in class-table order, generated field
	// name indices to source field name indices.
	ClassMetadata []map[int]int

	coveredFiles    []string
	fileIndexes     map[string]int
	classIndexes    map[string]int
	fieldIndexes    map[string]int
	variableIndexes map[string]int

	// generatedBySource indexes every line-mapping entry by its resolved
	// (file, line) source coordinate.
	generatedBySource map[int]map[int][]types.GeneratedLocation
}

// rebuild constructs the derived indexes. It must be called exactly once,
// before the record is shared between goroutines.
func (info *Info) rebuild() {
	info.fileIndexes = indexNames(info.FileNames)
	info.classIndexes = indexNames(info.ClassNames)
	info.fieldIndexes = indexNames(info.FieldNames)
	info.variableIndexes = indexNames(info.VariableNames)

	covered := make(map[int]struct{})
	for _, v := range info.FileMapping.Values {
		if v >= 0 && v < len(info.FileNames) {
			covered[v] = struct{}{}
		}
	}
	info.coveredFiles = make([]string, 0, len(covered))
	for v := range covered {
		info.coveredFiles = append(info.coveredFiles, info.FileNames[v])
	}
	sort.Strings(info.coveredFiles)

	// Every forward line-mapping entry gets exactly one reverse entry; the
	// owning file is resolved through the file mapping at the same
	// generated location.
	info.generatedBySource = make(map[int]map[int][]types.GeneratedLocation)
	for i := 0; i < info.LineMapping.Len(); i++ {
		line := info.LineMapping.Values[i]
		if line < 0 {
			continue
		}
		gen := types.GeneratedLocation{
			Line:   info.LineMapping.Lines[i],
			Column: info.LineMapping.Columns[i],
		}
		file := info.FileMapping.valueAt(gen.Line, gen.Column)
		if file < 0 || file >= len(info.FileNames) {
			continue
		}
		byLine := info.generatedBySource[file]
		if byLine == nil {
			byLine = make(map[int][]types.GeneratedLocation)
			info.generatedBySource[file] = byLine
		}
		byLine[line] = append(byLine[line], gen)
	}
}

func indexNames(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, name := range names {
		m[name] = i
	}
	return m
}

// CoveredSourceFiles returns the distinct source file names reachable
// through the file mapping, sorted.
func (info *Info) CoveredSourceFiles() []string {
	return info.coveredFiles
}

// SourceLocationAt resolves a generated location to its source coordinate.
// It returns the empty location when no mapping entry precedes the query or
// the entry's value is unknown.
func (info *Info) SourceLocationAt(line, column int) types.SourceLocation {
	srcLine := info.LineMapping.valueAt(line, column)
	if srcLine < 0 {
		return types.EmptySourceLocation()
	}
	var file string
	if v := info.FileMapping.valueAt(line, column); v >= 0 && v < len(info.FileNames) {
		file = info.FileNames[v]
	}
	return types.SourceLocation{FileName: file, Line: srcLine}
}

// MethodAt resolves the method enclosing a generated location, or nil when
// no method mapping covers it. The class component comes from the class
// mapping at the same location and may be empty.
func (info *Info) MethodAt(line, column int) *types.MethodReference {
	v := info.MethodMapping.valueAt(line, column)
	if v < 0 || v >= len(info.MethodNames) {
		return nil
	}
	name, descriptor := splitMethod(info.MethodNames[v])
	ref := &types.MethodReference{Name: name, Descriptor: descriptor}
	if c := info.ClassMapping.valueAt(line, column); c >= 0 && c < len(info.ClassNames) {
		ref.ClassName = info.ClassNames[c]
	}
	return ref
}

// splitMethod splits a method-table entry of the form "name(descriptor)RetT"
// into name and descriptor parts.
func splitMethod(s string) (name, descriptor string) {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// GeneratedLocations returns every generated location whose forward mapping
// resolves to (fileName, line). The result is nil when the coordinate is
// not covered.
func (info *Info) GeneratedLocations(fileName string, line int) []types.GeneratedLocation {
	fi, ok := info.fileIndexes[fileName]
	if !ok {
		return nil
	}
	return info.generatedBySource[fi][line]
}

// VariableMeaningAt returns the source-level variable names the generated
// variable name may correspond to at the given location. The result is nil
// when the variable has no mapping data or no entry precedes the location.
func (info *Info) VariableMeaningAt(line, column int, name string) []string {
	vi, ok := info.variableIndexes[name]
	if !ok || info.VariableMappings[vi] == nil {
		return nil
	}
	mm := info.VariableMappings[vi]
	i := mm.indexOf(line, column)
	if i < 0 {
		return nil
	}
	var names []string
	for _, d := range mm.Data[mm.Offsets[i]:mm.Offsets[i+1]] {
		if d >= 0 && d < len(info.VariableNames) {
			names = append(names, info.VariableNames[d])
		}
	}
	return names
}

// FieldMeaning resolves a runtime-observed field identifier on a class to
// its source-level field name.
func (info *Info) FieldMeaning(className, fieldName string) (string, bool) {
	ci, ok := info.classIndexes[className]
	if !ok || ci >= len(info.ClassMetadata) {
		return "", false
	}
	fi, ok := info.fieldIndexes[fieldName]
	if !ok {
		return "", false
	}
	v, ok := info.ClassMetadata[ci][fi]
	if !ok || v < 0 || v >= len(info.FieldNames) {
		return "", false
	}
	return info.FieldNames[v], true
}
