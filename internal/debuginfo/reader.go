package debuginfo

import (
	"errors"
	"fmt"
	"io"

	"github.com/jsaot/debug/internal/varint"
)

// ErrFormat is wrapped by every decode failure. Decoding is all-or-nothing:
// a record that fails to decode carries no usable debug information.
var ErrFormat = errors.New("debuginfo: invalid record")

func formatErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFormat, what, err)
}

// Read decodes one debug-information record from r. The section order is
// fixed: name tables, the four location mappings, variable mappings, class
// metadata. The returned record has its derived indexes built and is ready
// for concurrent queries.
func Read(r io.Reader) (*Info, error) {
	vr := varint.NewReader(r)
	info := &Info{}

	var err error
	if info.FileNames, err = readStrings(vr); err != nil {
		return nil, formatErr("file names", err)
	}
	if info.ClassNames, err = readStrings(vr); err != nil {
		return nil, formatErr("class names", err)
	}
	if info.FieldNames, err = readStrings(vr); err != nil {
		return nil, formatErr("field names", err)
	}
	if info.MethodNames, err = readStrings(vr); err != nil {
		return nil, formatErr("method names", err)
	}
	if info.VariableNames, err = readStrings(vr); err != nil {
		return nil, formatErr("variable names", err)
	}

	if info.FileMapping, err = readMapping(vr); err != nil {
		return nil, formatErr("file mapping", err)
	}
	if info.LineMapping, err = readMapping(vr); err != nil {
		return nil, formatErr("line mapping", err)
	}
	if info.ClassMapping, err = readMapping(vr); err != nil {
		return nil, formatErr("class mapping", err)
	}
	if info.MethodMapping, err = readMapping(vr); err != nil {
		return nil, formatErr("method mapping", err)
	}

	if info.VariableMappings, err = readVariableMappings(vr, len(info.VariableNames)); err != nil {
		return nil, formatErr("variable mappings", err)
	}
	if info.ClassMetadata, err = readClassMetadata(vr, len(info.ClassNames)); err != nil {
		return nil, formatErr("class metadata", err)
	}

	info.rebuild()
	return info, nil
}

func readStrings(r *varint.Reader) ([]string, error) {
	n, err := r.ReadUint()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readLines decodes the run-length-encoded generated-line deltas and sums
// them into absolute lines.
func readLines(r *varint.Reader) ([]int, error) {
	lines, err := r.ReadRunLength()
	if err != nil {
		return nil, err
	}
	last := 0
	for i, d := range lines {
		last += d
		lines[i] = last
	}
	return lines, nil
}

func readRelativeSeq(r *varint.Reader, n int) ([]int, error) {
	out := make([]int, n)
	r.ResetRelative()
	for i := range out {
		v, err := r.ReadRelative()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readMapping(r *varint.Reader) (Mapping, error) {
	lines, err := readLines(r)
	if err != nil {
		return Mapping{}, err
	}
	columns, err := readRelativeSeq(r, len(lines))
	if err != nil {
		return Mapping{}, err
	}
	values, err := readRelativeSeq(r, len(lines))
	if err != nil {
		return Mapping{}, err
	}
	m := Mapping{Lines: lines, Columns: columns, Values: values}
	if err := checkOrdered(lines, columns); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// checkOrdered verifies the (line, column) sequence is non-decreasing.
// An unordered mapping would silently break every binary-search lookup, so
// it is rejected at decode time.
func checkOrdered(lines, columns []int) error {
	for i := 1; i < len(lines); i++ {
		if lines[i] < lines[i-1] ||
			(lines[i] == lines[i-1] && columns[i] < columns[i-1]) {
			return fmt.Errorf("entries out of order at index %d", i)
		}
	}
	return nil
}

func readMultiMapping(r *varint.Reader) (*MultiMapping, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	columns, err := readRelativeSeq(r, len(lines))
	if err != nil {
		return nil, err
	}
	offsets := make([]int, len(lines)+1)
	last := 0
	for i := 1; i < len(offsets); i++ {
		d, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		last += d
		offsets[i] = last
	}
	data, err := readRelativeSeq(r, last)
	if err != nil {
		return nil, err
	}
	if err := checkOrdered(lines, columns); err != nil {
		return nil, err
	}
	return &MultiMapping{Lines: lines, Columns: columns, Offsets: offsets, Data: data}, nil
}

func readVariableMappings(r *varint.Reader, count int) ([]*MultiMapping, error) {
	mappings := make([]*MultiMapping, count)
	n, err := r.ReadUint()
	if err != nil {
		return nil, err
	}
	lastVar := 0
	for ; n > 0; n-- {
		d, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		lastVar += d
		if lastVar >= count {
			return nil, fmt.Errorf("variable slot %d out of range (%d variables)", lastVar, count)
		}
		if mappings[lastVar], err = readMultiMapping(r); err != nil {
			return nil, err
		}
	}
	return mappings, nil
}

func readClassMetadata(r *varint.Reader, count int) ([]map[int]int, error) {
	classes := make([]map[int]int, count)
	for i := range classes {
		n, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		meta := make(map[int]int, n)
		classes[i] = meta
		r.ResetRelative()
		for ; n > 0; n-- {
			key, err := r.ReadRelative()
			if err != nil {
				return nil, err
			}
			value, err := r.ReadUint()
			if err != nil {
				return nil, err
			}
			meta[key] = value
		}
	}
	return classes, nil
}
