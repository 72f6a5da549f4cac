// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package seqfile reads and writes the sequence container format: a binary
// file wrapping key/value records behind a 3-byte "SEQ" magic header.
//
// Layout:
//
//	magic "SEQ" | version byte | key class | value class | 16-byte sync marker
//	records: recordLen int32 | keyLen int32 | key bytes | value bytes
//	sync escape: recordLen == -1 followed by the 16-byte sync marker
//
// Class names are uvarint length-prefixed UTF-8. All integers are big-endian.
package seqfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Version is the container version this codec writes and accepts.
const Version byte = 6

// Magic is the fixed 3-byte header identifying a sequence container.
var Magic = [3]byte{'S', 'E', 'Q'}

const (
	syncEscape = int32(-1)
	syncSize   = 16
	// syncInterval is the approximate byte distance between sync markers.
	syncInterval = 2000
)

// Writer appends key/value records to a sequence container.
type Writer struct {
	w        *bufio.Writer
	sync     [syncSize]byte
	written  int64
	lastSync int64
}

// NewWriter writes the container header and returns a Writer. keyClass and
// valueClass identify the record codecs for readers.
func NewWriter(w io.Writer, keyClass, valueClass string) (*Writer, error) {
	sw := &Writer{w: bufio.NewWriter(w)}
	sw.sync = uuid.New() // marker only needs to be unlikely to occur in data

	if _, err := sw.w.Write(Magic[:]); err != nil {
		return nil, fmt.Errorf("write magic: %w", err)
	}
	if err := sw.w.WriteByte(Version); err != nil {
		return nil, fmt.Errorf("write version: %w", err)
	}
	if err := writeString(sw.w, keyClass); err != nil {
		return nil, fmt.Errorf("write key class: %w", err)
	}
	if err := writeString(sw.w, valueClass); err != nil {
		return nil, fmt.Errorf("write value class: %w", err)
	}
	if _, err := sw.w.Write(sw.sync[:]); err != nil {
		return nil, fmt.Errorf("write sync marker: %w", err)
	}
	return sw, nil
}

// Append writes one key/value record, inserting a sync marker when enough
// bytes have accumulated since the last one.
func (sw *Writer) Append(key, value []byte) error {
	if sw.written-sw.lastSync >= syncInterval {
		if err := sw.writeSync(); err != nil {
			return err
		}
	}

	recordLen := int32(len(key) + len(value))
	if err := binary.Write(sw.w, binary.BigEndian, recordLen); err != nil {
		return fmt.Errorf("write record length: %w", err)
	}
	if err := binary.Write(sw.w, binary.BigEndian, int32(len(key))); err != nil {
		return fmt.Errorf("write key length: %w", err)
	}
	if _, err := sw.w.Write(key); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	if _, err := sw.w.Write(value); err != nil {
		return fmt.Errorf("write value: %w", err)
	}

	sw.written += 8 + int64(recordLen)
	return nil
}

// Close flushes buffered records. It does not close the underlying writer.
func (sw *Writer) Close() error {
	return sw.w.Flush()
}

func (sw *Writer) writeSync() error {
	if err := binary.Write(sw.w, binary.BigEndian, syncEscape); err != nil {
		return fmt.Errorf("write sync escape: %w", err)
	}
	if _, err := sw.w.Write(sw.sync[:]); err != nil {
		return fmt.Errorf("write sync marker: %w", err)
	}
	sw.lastSync = sw.written
	return nil
}

// Reader iterates key/value records of a sequence container.
type Reader struct {
	r          *bufio.Reader
	sync       [syncSize]byte
	keyClass   string
	valueClass string
}

// NewReader validates the container header and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	sr := &Reader{r: bufio.NewReader(r)}

	var magic [3]byte
	if _, err := io.ReadFull(sr.r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bad magic %q: not a sequence container", magic[:])
	}

	version, err := sr.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}

	if sr.keyClass, err = readString(sr.r); err != nil {
		return nil, fmt.Errorf("read key class: %w", err)
	}
	if sr.valueClass, err = readString(sr.r); err != nil {
		return nil, fmt.Errorf("read value class: %w", err)
	}
	if _, err := io.ReadFull(sr.r, sr.sync[:]); err != nil {
		return nil, fmt.Errorf("read sync marker: %w", err)
	}
	return sr, nil
}

// KeyClass returns the key codec identifier recorded in the header.
func (sr *Reader) KeyClass() string { return sr.keyClass }

// ValueClass returns the value codec identifier recorded in the header.
func (sr *Reader) ValueClass() string { return sr.valueClass }

// Next returns the next key/value record, or io.EOF after the last one.
func (sr *Reader) Next() (key, value []byte, err error) {
	for {
		var recordLen int32
		if err := binary.Read(sr.r, binary.BigEndian, &recordLen); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, nil, io.EOF
			}
			return nil, nil, fmt.Errorf("read record length: %w", err)
		}

		if recordLen == syncEscape {
			var marker [syncSize]byte
			if _, err := io.ReadFull(sr.r, marker[:]); err != nil {
				return nil, nil, fmt.Errorf("read sync marker: %w", err)
			}
			if !bytes.Equal(marker[:], sr.sync[:]) {
				return nil, nil, fmt.Errorf("sync marker mismatch: container corrupt")
			}
			continue
		}

		if recordLen < 0 {
			return nil, nil, fmt.Errorf("negative record length %d", recordLen)
		}

		var keyLen int32
		if err := binary.Read(sr.r, binary.BigEndian, &keyLen); err != nil {
			return nil, nil, fmt.Errorf("read key length: %w", err)
		}
		if keyLen < 0 || keyLen > recordLen {
			return nil, nil, fmt.Errorf("key length %d out of range for record length %d", keyLen, recordLen)
		}

		key = make([]byte, keyLen)
		if _, err := io.ReadFull(sr.r, key); err != nil {
			return nil, nil, fmt.Errorf("read key: %w", err)
		}
		value = make([]byte, recordLen-keyLen)
		if _, err := io.ReadFull(sr.r, value); err != nil {
			return nil, nil, fmt.Errorf("read value: %w", err)
		}
		return key, value, nil
	}
}

func writeString(w *bufio.Writer, s string) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > 1<<16 {
		return "", fmt.Errorf("class name length %d too large", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
