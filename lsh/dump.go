package lsh

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var emptySnapshotErr = errors.New("snapshot must contain at least one hash function")

// Snapshot is an exported population
type Snapshot struct {
	RunID   string
	Records []Record
}

// Dump encodes the snapshot with gob and compresses it with zstd
func (s *Snapshot) Dump() ([]byte, error) {
	if len(s.Records) == 0 {
		return nil, emptySnapshotErr
	}
	buf := &bytes.Buffer{}
	enc := gob.NewEncoder(buf)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer zw.Close()
	return zw.EncodeAll(buf.Bytes(), nil), nil
}

// Load restores the snapshot from the byte array produced by Dump.
// Every record is checked, so a corrupted population is never loaded partially.
func (s *Snapshot) Load(inp []byte) error {
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer zr.Close()
	raw, err := zr.DecodeAll(inp, nil)
	if err != nil {
		return err
	}
	var decoded Snapshot
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&decoded); err != nil {
		return err
	}
	for _, rec := range decoded.Records {
		if _, err := FromRecord(rec); err != nil {
			return err
		}
	}
	*s = decoded
	return nil
}

// DumpBytesToFile writes byte array to the file
func DumpBytesToFile(inp []byte, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(inp); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// LoadBytesFromFile loads byte array from file
func LoadBytesFromFile(path string) ([]byte, error) {
	buf := &bytes.Buffer{}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err = io.Copy(buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
