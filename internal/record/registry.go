// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package record

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClassNotFound is returned when a codec identifier or table name cannot
// be resolved.
var ErrClassNotFound = errors.New("record class not found")

// ErrPackageNotFound is returned when a packaging artifact reference cannot
// be resolved.
var ErrPackageNotFound = errors.New("packaging artifact not found")

// Registry resolves table names to record codecs and owns the packaging
// artifacts the codecs ship in. Packaging is acquired as a scoped lease and
// released when the export run finishes, success or not.
type Registry struct {
	mu       sync.Mutex
	codecs   map[string]Codec  // class identifier -> codec
	tables   map[string]string // table name -> class identifier
	packages map[string]string // table name -> package ref
	active   map[string]int    // package ref -> open lease count
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs:   make(map[string]Codec),
		tables:   make(map[string]string),
		packages: make(map[string]string),
		active:   make(map[string]int),
	}
}

// Register binds a table name to a codec carried by a packaging artifact.
func (r *Registry) Register(table string, codec Codec, packageRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.ClassName()] = codec
	r.tables[table] = codec.ClassName()
	r.packages[table] = packageRef
	if _, ok := r.active[packageRef]; !ok {
		r.active[packageRef] = 0
	}
}

// RegisterDelimitedTable registers the generic delimited codec for a table
// under a derived class identifier and package reference, and returns both.
func (r *Registry) RegisterDelimitedTable(table string, columns []string, delimiter string) (class, packageRef string) {
	class = "export." + table + "Record"
	packageRef = table + "-codecs"
	r.Register(table, NewDelimitedCodec(class, columns, delimiter), packageRef)
	return class, packageRef
}

// ClassForTable resolves a table name to its codec class identifier.
func (r *Registry) ClassForTable(table string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	class, ok := r.tables[table]
	if !ok {
		return "", fmt.Errorf("table %s: %w", table, ErrClassNotFound)
	}
	return class, nil
}

// PackageForTable resolves a table name to its packaging artifact reference.
func (r *Registry) PackageForTable(table string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.packages[table]
	if !ok {
		return "", fmt.Errorf("table %s: %w", table, ErrPackageNotFound)
	}
	return ref, nil
}

// Codec resolves a class identifier to its codec.
func (r *Registry) Codec(class string) (Codec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	codec, ok := r.codecs[class]
	if !ok {
		return nil, fmt.Errorf("class %s: %w", class, ErrClassNotFound)
	}
	return codec, nil
}

// Lease is a scoped hold on a packaging artifact. Release is idempotent and
// must run on every exit path of the export that acquired it.
type Lease struct {
	ref      string
	reg      *Registry
	released bool
	mu       sync.Mutex
}

// Acquire takes a scoped lease on a packaging artifact.
func (r *Registry) Acquire(packageRef string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[packageRef]; !ok {
		return nil, fmt.Errorf("package %s: %w", packageRef, ErrPackageNotFound)
	}
	r.active[packageRef]++
	return &Lease{ref: packageRef, reg: r}, nil
}

// Ref returns the packaging artifact reference this lease holds.
func (l *Lease) Ref() string { return l.ref }

// Release returns the packaging artifact. Safe to call more than once.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true

	l.reg.mu.Lock()
	defer l.reg.mu.Unlock()
	if l.reg.active[l.ref] > 0 {
		l.reg.active[l.ref]--
	}
}

// ActiveLeases reports the open lease count for a packaging artifact.
func (r *Registry) ActiveLeases(packageRef string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[packageRef]
}
