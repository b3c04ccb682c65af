package debuginfo

import (
	"io"
	"sort"

	"github.com/jsaot/debug/internal/varint"
)

// Write encodes the record in the fixed section order. It is the exact
// inverse of Read: decoding the output reproduces the record, and encoding
// is deterministic for identical input arrays.
func (info *Info) Write(w io.Writer) error {
	vw := varint.NewWriter(w)

	for _, table := range [][]string{
		info.FileNames, info.ClassNames, info.FieldNames,
		info.MethodNames, info.VariableNames,
	} {
		if err := writeStrings(vw, table); err != nil {
			return err
		}
	}

	for _, m := range []*Mapping{
		&info.FileMapping, &info.LineMapping,
		&info.ClassMapping, &info.MethodMapping,
	} {
		if err := writeMapping(vw, m); err != nil {
			return err
		}
	}

	if err := writeVariableMappings(vw, info.VariableMappings); err != nil {
		return err
	}
	return writeClassMetadata(vw, info.ClassMetadata)
}

func writeStrings(w *varint.Writer, table []string) error {
	if err := w.WriteUint(len(table)); err != nil {
		return err
	}
	for _, s := range table {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// writeLines run-length-encodes absolute generated lines as deltas.
func writeLines(w *varint.Writer, lines []int) error {
	deltas := make([]int, len(lines))
	last := 0
	for i, line := range lines {
		deltas[i] = line - last
		last = line
	}
	return w.WriteRunLength(deltas)
}

func writeRelativeSeq(w *varint.Writer, values []int) error {
	w.ResetRelative()
	for _, v := range values {
		if err := w.WriteRelative(v); err != nil {
			return err
		}
	}
	return nil
}

func writeMapping(w *varint.Writer, m *Mapping) error {
	if err := writeLines(w, m.Lines); err != nil {
		return err
	}
	if err := writeRelativeSeq(w, m.Columns); err != nil {
		return err
	}
	return writeRelativeSeq(w, m.Values)
}

func writeMultiMapping(w *varint.Writer, m *MultiMapping) error {
	if err := writeLines(w, m.Lines); err != nil {
		return err
	}
	if err := writeRelativeSeq(w, m.Columns); err != nil {
		return err
	}
	for i := 1; i < len(m.Offsets); i++ {
		if err := w.WriteUint(m.Offsets[i] - m.Offsets[i-1]); err != nil {
			return err
		}
	}
	return writeRelativeSeq(w, m.Data)
}

func writeVariableMappings(w *varint.Writer, mappings []*MultiMapping) error {
	populated := 0
	for _, m := range mappings {
		if m != nil {
			populated++
		}
	}
	if err := w.WriteUint(populated); err != nil {
		return err
	}
	lastVar := 0
	for i, m := range mappings {
		if m == nil {
			continue
		}
		if err := w.WriteUint(i - lastVar); err != nil {
			return err
		}
		lastVar = i
		if err := writeMultiMapping(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writeClassMetadata(w *varint.Writer, classes []map[int]int) error {
	for _, meta := range classes {
		if err := w.WriteUint(len(meta)); err != nil {
			return err
		}
		// Keys ascending: keeps relative deltas small and the encoding
		// deterministic.
		keys := make([]int, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		w.ResetRelative()
		for _, k := range keys {
			if err := w.WriteRelative(k); err != nil {
				return err
			}
			if err := w.WriteUint(meta[k]); err != nil {
				return err
			}
		}
	}
	return nil
}
