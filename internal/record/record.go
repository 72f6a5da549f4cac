// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package record holds the export record model: decoded table rows, the
// codecs that produce them from raw input payloads, and the registry that
// resolves table names to codec identifiers and packaging artifacts.
package record

import (
	"fmt"
	"strings"
)

// Record is one table row as ordered column values.
type Record struct {
	Values []string
}

// Codec decodes a raw input payload into a Record. Implementations stand in
// for the per-table generated marshaling classes; the registry resolves them
// by class identifier.
type Codec interface {
	// ClassName is the identifier the codec is registered under.
	ClassName() string
	// Columns are the target table columns, in insert order.
	Columns() []string
	// Decode parses one raw payload (a text line or a container value).
	Decode(payload []byte) (Record, error)
}

// DelimitedCodec is the generic text codec: one record per payload, fields
// split on a single-character delimiter.
type DelimitedCodec struct {
	class     string
	columns   []string
	delimiter string
}

// NewDelimitedCodec returns a codec for delimiter-separated payloads with
// the given target columns. An empty delimiter defaults to a comma.
func NewDelimitedCodec(class string, columns []string, delimiter string) *DelimitedCodec {
	if delimiter == "" {
		delimiter = ","
	}
	return &DelimitedCodec{class: class, columns: columns, delimiter: delimiter}
}

func (c *DelimitedCodec) ClassName() string { return c.class }

func (c *DelimitedCodec) Columns() []string { return c.columns }

// Decode splits the payload into fields and checks arity against the
// target columns.
func (c *DelimitedCodec) Decode(payload []byte) (Record, error) {
	line := strings.TrimRight(string(payload), "\r\n")
	fields := strings.Split(line, c.delimiter)
	if len(fields) != len(c.columns) {
		return Record{}, fmt.Errorf("record has %d fields, table expects %d: %q",
			len(fields), len(c.columns), line)
	}
	return Record{Values: fields}, nil
}
