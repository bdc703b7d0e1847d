package layout

import (
	"fmt"
	"io"

	"github.com/roach88/dnnplan/internal/ir"
)

// Describe writes a fixed-format summary of one arena:
//
//	data arena: 2 buffer(s), 8 element(s)
//	  #0 shape=[1,4] offset=0 size=4
//	  #1 shape=[1,4] offset=4 size=4
func Describe(w io.Writer, arena string, a ir.LayoutAssignment) error {
	if _, err := fmt.Fprintf(w, "%s arena: %d buffer(s), %d element(s)\n", arena, len(a.Buffers), a.TotalSize); err != nil {
		return err
	}
	for i, b := range a.Buffers {
		if _, err := fmt.Fprintf(w, "  #%d shape=%s offset=%d size=%d\n", i, b.Shape, b.Offset, b.Size); err != nil {
			return err
		}
	}
	return nil
}
