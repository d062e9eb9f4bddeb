package solver

import (
	"bytes"
	"strings"
)

// RecordDecoder incrementally frames an event stream: records are separated
// by a blank line and carry their payload on "data:" lines. Chunks may split
// a record, a line, or a UTF-8 multi-byte sequence at any byte boundary;
// the decoder holds back the trailing incomplete fragment between feeds, so
// no stream position is ever lost.
type RecordDecoder struct {
	buf []byte
}

const dataMarker = "data:"

// Feed appends a chunk and returns the payloads of every record completed
// by it, in stream order. Records with no data line yield nothing. Both LF
// and CRLF line endings frame records: the blank-line separator may arrive
// as "\n\n" or "\r\n\r\n".
func (d *RecordDecoder) Feed(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var payloads []string
	for {
		idx, sep := nextSeparator(d.buf)
		if idx < 0 {
			break
		}
		record := d.buf[:idx]
		d.buf = d.buf[idx+sep:]
		if payload, ok := extractData(record); ok {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

// nextSeparator locates the earliest blank-line separator and its width
func nextSeparator(buf []byte) (idx, width int) {
	idx = bytes.Index(buf, []byte("\n\n"))
	width = 2
	if cr := bytes.Index(buf, []byte("\r\n\r\n")); cr >= 0 && (idx < 0 || cr < idx) {
		idx, width = cr, 4
	}
	return idx, width
}

// Flush drains a final record that ended without its blank-line terminator
func (d *RecordDecoder) Flush() []string {
	if len(d.buf) == 0 {
		return nil
	}
	record := d.buf
	d.buf = nil
	if payload, ok := extractData(record); ok {
		return []string{payload}
	}
	return nil
}

// extractData joins the record's data lines per the event-stream framing
// rules. Comment lines (leading colon) and unknown fields are ignored.
func extractData(record []byte) (string, bool) {
	var data strings.Builder
	found := false

	for _, line := range strings.Split(string(record), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		value := strings.TrimPrefix(line, dataMarker)
		value = strings.TrimPrefix(value, " ")
		if found {
			data.WriteByte('\n')
		}
		data.WriteString(value)
		found = true
	}

	return data.String(), found
}
