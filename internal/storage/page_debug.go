package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
)

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Fprintf(format string, a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func (e *errWriter) Fprintln(a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, a...)
}

// ASCII preview: printable -> itself, else '.'
func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if r < unicode.MaxASCII && unicode.IsPrint(r) {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints header bitmap, slot occupancy and tuple previews to the writer.
func (p *HeapPage) Debug(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.Fprintf("=== Page Debug ===\n")
	ew.Fprintf("pageID=%s pageSize=%d tupleWidth=%d\n", p.id, PageSize(), p.schema.Width())
	ew.Fprintf("numSlots=%d used=%d empty=%d headerBytes=%d\n",
		p.numSlots, p.numSlots-p.NumEmptySlots(), p.NumEmptySlots(), len(p.header))

	const maxPreview = 32
	hdr := p.header
	if len(hdr) > maxPreview {
		hdr = hdr[:maxPreview]
	}
	ew.Fprintf("header(hex)=%s\n", hex.EncodeToString(hdr))

	ew.Fprintln("\n-- Tuples --")
	if p.NumEmptySlots() == p.numSlots {
		ew.Fprintln("(none)")
	}
	for i, t := range p.tuples {
		if ew.err != nil {
			break
		}
		if t == nil {
			continue
		}
		ew.Fprintf("[%d] %s\n", i, asciiPreview([]byte(t.String())))
	}

	ew.Fprintln("=== End Page Debug ===")
	return ew.err
}

func (p *HeapPage) DebugString() string {
	var b bytes.Buffer
	if err := p.Debug(&b); err != nil {
		// best-effort: surface the error in the output so callers see it
		fmt.Fprintf(&b, "\n<debug error: %v>\n", err)
	}
	return b.String()
}
