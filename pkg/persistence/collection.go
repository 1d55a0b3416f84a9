// Package persistence stores point collections as framed files: a header
// frame followed by one gob encoded frame per tagged point set, each
// protected by a CRC32.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/sanonone/pcgcluster/pkg/data"
)

// FormatVersion is bumped whenever the record layout changes.
const FormatVersion = 1

// Header is the first frame of a collection file.
type Header struct {
	Version int
	// ID identifies the write that produced the file.
	ID    string
	Count int
}

type taggedRecord struct {
	Pin    string
	Record data.PointDataRecord
}

// WriteCollection writes a header and one frame per item of outputs.
func WriteCollection(w io.Writer, outputs []data.TaggedData) (Header, error) {
	fw := NewFrameWriter(w)
	h := Header{Version: FormatVersion, ID: uuid.New().String(), Count: len(outputs)}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h); err != nil {
		return h, fmt.Errorf("encode header: %w", err)
	}
	if err := fw.WriteFrame(OpCodeHeader, buf.Bytes()); err != nil {
		return h, err
	}

	for i, out := range outputs {
		if out.Data == nil {
			return h, fmt.Errorf("output %d has no data", i)
		}
		buf.Reset()
		rec := taggedRecord{Pin: out.Pin, Record: out.Data.Record(out.Tags)}
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return h, fmt.Errorf("encode output %d: %w", i, err)
		}
		if err := fw.WriteFrame(OpCodePointData, buf.Bytes()); err != nil {
			return h, err
		}
	}
	return h, nil
}

// ReadCollection reads what WriteCollection wrote. Restored point sets get
// new UIDs.
func ReadCollection(r io.Reader) (Header, []data.TaggedData, error) {
	var h Header
	payload, err := expectOp(r, OpCodeHeader)
	if err != nil {
		return h, nil, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&h); err != nil {
		return h, nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != FormatVersion {
		return h, nil, fmt.Errorf("unsupported format version %d", h.Version)
	}

	out := make([]data.TaggedData, 0, h.Count)
	for i := 0; i < h.Count; i++ {
		payload, err := expectOp(r, OpCodePointData)
		if err != nil {
			if err == io.EOF {
				err = ErrIncompleteFrame
			}
			return h, nil, fmt.Errorf("read output %d: %w", i, err)
		}
		var rec taggedRecord
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&rec); err != nil {
			return h, nil, fmt.Errorf("decode output %d: %w", i, err)
		}
		d, err := data.PointDataFromRecord(rec.Record)
		if err != nil {
			return h, nil, fmt.Errorf("restore output %d: %w", i, err)
		}
		out = append(out, data.TaggedData{Pin: rec.Pin, Data: d, Tags: rec.Record.Tags})
	}
	return h, out, nil
}

// SaveFile writes outputs to path. The file is written next to path and
// renamed into place once synced.
func SaveFile(path string, outputs []data.TaggedData) (Header, error) {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return Header{}, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	buf := bufio.NewWriter(file)
	h, err := WriteCollection(buf, outputs)
	if err == nil {
		err = buf.Flush()
	}
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return h, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return h, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return h, nil
}

// LoadFile reads a file written by SaveFile.
func LoadFile(path string) (Header, []data.TaggedData, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer file.Close()
	return ReadCollection(bufio.NewReader(file))
}
