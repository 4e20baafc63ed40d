package gtfs

import (
	"bytes"
	"strings"
)

// rowWriter writes CSV rows, quoting only fields holding a comma, a quote or a line break
type rowWriter struct {
	buffer bytes.Buffer
}

func (w *rowWriter) Write(row []string) error {
	for i, field := range row {
		if i > 0 {
			w.buffer.WriteByte(',')
		}

		if strings.ContainsAny(field, ",\"\r\n") {
			w.buffer.WriteByte('"')
			w.buffer.WriteString(strings.ReplaceAll(field, `"`, `""`))
			w.buffer.WriteByte('"')
		} else {
			w.buffer.WriteString(field)
		}
	}
	w.buffer.WriteByte('\n')

	return nil
}

func (w *rowWriter) Flush() {}

func (w *rowWriter) Error() error {
	return nil
}

func (w *rowWriter) Bytes() []byte {
	return w.buffer.Bytes()
}
