package debuginfo

import (
	"encoding/json"
	"io"
	"strings"
)

// WriteSourceMap emits a standard source map (revision 3) equivalent to the
// record's file/line mappings, so browser devtools can consume the same
// data the native debugger uses. Column information on the source side is
// not tracked by the record and is emitted as 0; entries with no source
// origin become single-field segments that terminate the preceding range.
func (info *Info) WriteSourceMap(w io.Writer, generatedFile string) error {
	var mappings strings.Builder

	genLine := 0
	prevGenCol := 0
	prevSource := 0
	prevSrcLine := 0
	firstInLine := true

	for i := 0; i < info.LineMapping.Len(); i++ {
		line := info.LineMapping.Lines[i]
		col := info.LineMapping.Columns[i]

		for genLine < line {
			mappings.WriteByte(';')
			genLine++
			prevGenCol = 0
			firstInLine = true
		}
		if !firstInLine {
			mappings.WriteByte(',')
		}
		firstInLine = false

		writeVLQ(&mappings, col-prevGenCol)
		prevGenCol = col

		srcLine := info.LineMapping.Values[i]
		source := info.FileMapping.valueAt(line, col)
		if srcLine < 0 || source < 0 || source >= len(info.FileNames) {
			continue // single-field segment: no source origin
		}
		writeVLQ(&mappings, source-prevSource)
		prevSource = source
		writeVLQ(&mappings, srcLine-prevSrcLine)
		prevSrcLine = srcLine
		writeVLQ(&mappings, 0) // source column not tracked
	}

	sources := info.FileNames
	if sources == nil {
		sources = []string{}
	}
	return json.NewEncoder(w).Encode(map[string]interface{}{
		"version":  3,
		"file":     generatedFile,
		"sources":  sources,
		"names":    []string{},
		"mappings": mappings.String(),
	})
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ emits one base64 VLQ value: sign bit in the LSB, five value bits
// per digit, bit 5 as the continuation flag.
func writeVLQ(b *strings.Builder, v int) {
	u := uint32(v) << 1
	if v < 0 {
		u = uint32(-v)<<1 | 1
	}
	for {
		digit := u & 0x1f
		u >>= 5
		if u != 0 {
			digit |= 0x20
		}
		b.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}
