package serialize

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WriteIPC serializes record batches sharing one schema to the Arrow IPC
// stream format.
func WriteIPC(schema *arrow.Schema, batches []arrow.Record, allocator memory.Allocator) ([]byte, error) {
	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(allocator))
	defer writer.Close()

	for _, b := range batches {
		if err := writer.Write(b); err != nil {
			return nil, fmt.Errorf("failed to write IPC record: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close IPC writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadIPC reads every batch of an Arrow IPC stream. Returned batches are
// retained and must be released by the caller.
func ReadIPC(data []byte, allocator memory.Allocator) (*arrow.Schema, []arrow.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(allocator))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open IPC reader: %w", err)
	}
	defer reader.Release()

	var out []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := reader.Err(); err != nil {
		for _, r := range out {
			r.Release()
		}
		return nil, nil, fmt.Errorf("failed to read IPC stream: %w", err)
	}
	return reader.Schema(), out, nil
}
