package debuginfo

import (
	"fmt"

	"github.com/jsaot/debug/pkg/types"
)

// Builder constructs a debug-information record incrementally, in the order
// the compiler back end walks the generated output. Entries for each mapping
// must arrive in non-decreasing generated-location order; names are interned
// into the record's tables on first use.
type Builder struct {
	files     nameTable
	classes   nameTable
	fields    nameTable
	methods   nameTable
	variables nameTable

	fileMapping   mappingBuilder
	lineMapping   mappingBuilder
	classMapping  mappingBuilder
	methodMapping mappingBuilder

	variableMappings map[int]*multiMappingBuilder
	classMeta        map[int]map[int]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		variableMappings: make(map[int]*multiMappingBuilder),
		classMeta:        make(map[int]map[int]int),
	}
}

// AddSourceLocation records that generated code at gen originates from src.
// Passing the empty source location marks the start of an unmapped region.
func (b *Builder) AddSourceLocation(gen types.GeneratedLocation, src types.SourceLocation) error {
	file := -1
	if src.FileName != "" {
		file = b.files.intern(src.FileName)
	}
	line := src.Line
	if line < 0 {
		line = -1
	}
	if err := b.fileMapping.add(gen, file); err != nil {
		return err
	}
	return b.lineMapping.add(gen, line)
}

// AddClass records the class whose code begins at gen. An empty name marks
// the start of a classless region.
func (b *Builder) AddClass(gen types.GeneratedLocation, className string) error {
	v := -1
	if className != "" {
		v = b.classes.intern(className)
	}
	return b.classMapping.add(gen, v)
}

// AddMethod records the method whose code begins at gen. The method table
// stores name and descriptor as one entry.
func (b *Builder) AddMethod(gen types.GeneratedLocation, name, descriptor string) error {
	return b.methodMapping.add(gen, b.methods.intern(name+descriptor))
}

// AddVariable records that the generated variable observed at gen may
// correspond to any of the given source variables.
func (b *Builder) AddVariable(gen types.GeneratedLocation, generatedName string, sourceNames ...string) error {
	vi := b.variables.intern(generatedName)
	values := make([]int, len(sourceNames))
	for i, n := range sourceNames {
		values[i] = b.variables.intern(n)
	}
	mb := b.variableMappings[vi]
	if mb == nil {
		mb = &multiMappingBuilder{}
		b.variableMappings[vi] = mb
	}
	return mb.add(gen, values)
}

// AddFieldMeaning records that the runtime field identifier generatedField
// on className means sourceField in the original program.
func (b *Builder) AddFieldMeaning(className, generatedField, sourceField string) {
	ci := b.classes.intern(className)
	meta := b.classMeta[ci]
	if meta == nil {
		meta = make(map[int]int)
		b.classMeta[ci] = meta
	}
	meta[b.fields.intern(generatedField)] = b.fields.intern(sourceField)
}

// Build assembles the immutable record and its derived indexes. The Builder
// must not be used afterwards.
func (b *Builder) Build() *Info {
	info := &Info{
		FileNames:     namesToSlice(b.files.names),
		ClassNames:    namesToSlice(b.classes.names),
		FieldNames:    namesToSlice(b.fields.names),
		MethodNames:   namesToSlice(b.methods.names),
		VariableNames: namesToSlice(b.variables.names),

		FileMapping:   b.fileMapping.build(),
		LineMapping:   b.lineMapping.build(),
		ClassMapping:  b.classMapping.build(),
		MethodMapping: b.methodMapping.build(),
	}

	info.VariableMappings = make([]*MultiMapping, len(info.VariableNames))
	for vi, mb := range b.variableMappings {
		info.VariableMappings[vi] = mb.build()
	}

	info.ClassMetadata = make([]map[int]int, len(info.ClassNames))
	for i := range info.ClassMetadata {
		if meta := b.classMeta[i]; meta != nil {
			info.ClassMetadata[i] = meta
		} else {
			info.ClassMetadata[i] = map[int]int{}
		}
	}

	info.rebuild()
	return info
}

// nameTable interns strings into a 0-indexed ordered table.
type nameTable struct {
	names []string
	index map[string]int
}

func (t *nameTable) intern(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	i := len(t.names)
	t.names = append(t.names, name)
	t.index[name] = i
	return i
}

type mappingBuilder struct {
	lines   []int
	columns []int
	values  []int
}

func (b *mappingBuilder) add(gen types.GeneratedLocation, value int) error {
	if n := len(b.lines); n > 0 {
		last := types.GeneratedLocation{Line: b.lines[n-1], Column: b.columns[n-1]}
		if gen.Before(last) {
			return fmt.Errorf("debuginfo: mapping entry at %v precedes %v", gen, last)
		}
		if gen == last {
			b.values[n-1] = value
			return nil
		}
	}
	b.lines = append(b.lines, gen.Line)
	b.columns = append(b.columns, gen.Column)
	b.values = append(b.values, value)
	return nil
}

func (b *mappingBuilder) build() Mapping {
	return Mapping{
		Lines:   emptyToSlice(b.lines),
		Columns: emptyToSlice(b.columns),
		Values:  emptyToSlice(b.values),
	}
}

type multiMappingBuilder struct {
	lines   []int
	columns []int
	groups  [][]int
}

func (b *multiMappingBuilder) add(gen types.GeneratedLocation, values []int) error {
	if n := len(b.lines); n > 0 {
		last := types.GeneratedLocation{Line: b.lines[n-1], Column: b.columns[n-1]}
		if gen.Before(last) {
			return fmt.Errorf("debuginfo: variable mapping entry at %v precedes %v", gen, last)
		}
		if gen == last {
			b.groups[n-1] = append(b.groups[n-1], values...)
			return nil
		}
	}
	b.lines = append(b.lines, gen.Line)
	b.columns = append(b.columns, gen.Column)
	b.groups = append(b.groups, values)
	return nil
}

func (b *multiMappingBuilder) build() *MultiMapping {
	m := &MultiMapping{
		Lines:   emptyToSlice(b.lines),
		Columns: emptyToSlice(b.columns),
		Offsets: make([]int, len(b.lines)+1),
	}
	for i, group := range b.groups {
		m.Data = append(m.Data, group...)
		m.Offsets[i+1] = len(m.Data)
	}
	if m.Data == nil {
		m.Data = []int{}
	}
	return m
}

// emptyToSlice normalizes nil to an empty slice so built records compare
// equal to decoded ones.
func emptyToSlice(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

func namesToSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
