// Package types defines the shared coordinate and identity types used across
// the jsaot debug tools.
//
// Two coordinate systems appear throughout the codebase:
//   - GeneratedLocation: line/column in the compiler's emitted JavaScript
//   - SourceLocation: file/line in the original Java program
//
// A SourceLocation with no file name and a negative line is the "empty"
// sentinel meaning "no known source origin"; frames and lookups that cannot
// be resolved degrade to it rather than erroring.
package types

import "fmt"

// GeneratedLocation is a coordinate in the compiler's generated output.
// Lines and columns are zero-based and non-negative.
type GeneratedLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Compare orders locations by (line, column). It returns a negative number
// if l precedes o, zero if equal, and a positive number otherwise.
func (l GeneratedLocation) Compare(o GeneratedLocation) int {
	if l.Line != o.Line {
		return l.Line - o.Line
	}
	return l.Column - o.Column
}

// Before reports whether l strictly precedes o in generated-output order.
func (l GeneratedLocation) Before(o GeneratedLocation) bool {
	return l.Compare(o) < 0
}

func (l GeneratedLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// SourceLocation is a coordinate in the original program.
type SourceLocation struct {
	FileName string `json:"fileName,omitempty"`
	Line     int    `json:"line"`
}

// EmptySourceLocation returns the sentinel denoting "no known source origin".
func EmptySourceLocation() SourceLocation {
	return SourceLocation{Line: -1}
}

// IsEmpty reports whether the location carries no source origin.
func (l SourceLocation) IsEmpty() bool {
	return l.FileName == "" && l.Line < 0
}

func (l SourceLocation) String() string {
	if l.IsEmpty() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.FileName, l.Line)
}

// MethodReference identifies a method in the original program by its owning
// class, name, and descriptor.
type MethodReference struct {
	ClassName  string `json:"className"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor,omitempty"`
}

func (m MethodReference) String() string {
	if m.ClassName == "" {
		return m.Name + m.Descriptor
	}
	return m.ClassName + "." + m.Name + m.Descriptor
}

// BreakpointInfo describes a user-level breakpoint for external surfaces.
type BreakpointInfo struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Line     int    `json:"line"`
	Valid    bool   `json:"valid"`
}

// VariableInfo pairs a raw generated-code variable with the source-level
// names it may correspond to.
type VariableInfo struct {
	Name        string   `json:"name"`
	Value       string   `json:"value,omitempty"`
	SourceNames []string `json:"sourceNames,omitempty"`
}

// FrameInfo describes one reconstructed call-stack level for external
// surfaces. Location and Method are omitted for frames with no source
// mapping.
type FrameInfo struct {
	Location  *SourceLocation  `json:"location,omitempty"`
	Method    *MethodReference `json:"method,omitempty"`
	Variables []VariableInfo   `json:"variables,omitempty"`
}
