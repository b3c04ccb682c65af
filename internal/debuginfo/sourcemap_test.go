package debuginfo

import (
	"bytes"
	"testing"

	"github.com/go-sourcemap/sourcemap"
)

func TestWriteSourceMap(t *testing.T) {
	info := buildTestInfo(t)

	var buf bytes.Buffer
	if err := info.WriteSourceMap(&buf, "app.js"); err != nil {
		t.Fatalf("WriteSourceMap: %v", err)
	}

	consumer, err := sourcemap.Parse("app.js.map", buf.Bytes())
	if err != nil {
		t.Fatalf("emitted source map does not parse: %v", err)
	}

	// The consumer is 1-based on lines; the record is 0-based. Every
	// mapped record entry must resolve through the emitted map.
	tests := []struct {
		genLine, genCol int
		wantFile        string
		wantLine        int
	}{
		{0, 0, "Main.java", 10},
		{0, 20, "Main.java", 11},
		{2, 4, "Util.java", 3},
		{3, 0, "Main.java", 11},
	}
	for _, tt := range tests {
		file, _, line, _, ok := consumer.Source(tt.genLine+1, tt.genCol)
		if !ok {
			t.Errorf("Source(%d, %d): no mapping", tt.genLine+1, tt.genCol)
			continue
		}
		if file != tt.wantFile || line != tt.wantLine+1 {
			t.Errorf("Source(%d, %d) = %s:%d, want %s:%d",
				tt.genLine+1, tt.genCol, file, line, tt.wantFile, tt.wantLine+1)
		}
	}
}

func TestWriteSourceMapEmptyRecord(t *testing.T) {
	info := NewBuilder().Build()

	var buf bytes.Buffer
	if err := info.WriteSourceMap(&buf, "empty.js"); err != nil {
		t.Fatalf("WriteSourceMap: %v", err)
	}
	if _, err := sourcemap.Parse("empty.js.map", buf.Bytes()); err != nil {
		t.Fatalf("empty map does not parse: %v", err)
	}
}
