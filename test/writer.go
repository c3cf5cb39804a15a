package test

import "bytes"

// Writer is a simple io.Writer backed by an in-memory buffer, with a
// Compare helper for asserting on its accumulated contents.
type Writer struct {
	buf bytes.Buffer
}

// Write implements the io.Writer interface.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Compare reports whether the writer's accumulated contents equal s.
func (w *Writer) Compare(s string) bool {
	return w.buf.String() == s
}

// Clear empties the writer.
func (w *Writer) Clear() {
	w.buf.Reset()
}
