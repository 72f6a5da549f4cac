// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package record

import (
	"errors"
	"testing"
)

func TestDelimitedCodec_Decode(t *testing.T) {
	codec := NewDelimitedCodec("export.eventsRecord", []string{"id", "name", "ts"}, ",")

	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{"plain row", "1,alpha,2025-01-01", []string{"1", "alpha", "2025-01-01"}, false},
		{"trailing newline stripped", "2,beta,2025-01-02\n", []string{"2", "beta", "2025-01-02"}, false},
		{"crlf stripped", "3,gamma,2025-01-03\r\n", []string{"3", "gamma", "2025-01-03"}, false},
		{"empty fields kept", "4,,", []string{"4", "", ""}, false},
		{"too few fields", "5,delta", nil, true},
		{"too many fields", "6,a,b,c", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := codec.Decode([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(rec.Values) != len(tt.want) {
				t.Fatalf("Decode() returned %d values, want %d", len(rec.Values), len(tt.want))
			}
			for i, v := range tt.want {
				if rec.Values[i] != v {
					t.Errorf("value[%d] = %q, want %q", i, rec.Values[i], v)
				}
			}
		})
	}
}

func TestDelimitedCodec_DefaultDelimiter(t *testing.T) {
	codec := NewDelimitedCodec("c", []string{"a", "b"}, "")
	rec, err := codec.Decode([]byte("1,2"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if rec.Values[0] != "1" || rec.Values[1] != "2" {
		t.Errorf("Decode() = %v", rec.Values)
	}
}

func TestRegistry_Resolution(t *testing.T) {
	reg := NewRegistry()
	class, pkg := reg.RegisterDelimitedTable("events", []string{"id", "name"}, ",")

	gotClass, err := reg.ClassForTable("events")
	if err != nil {
		t.Fatalf("ClassForTable() error = %v", err)
	}
	if gotClass != class {
		t.Errorf("ClassForTable() = %q, want %q", gotClass, class)
	}

	gotPkg, err := reg.PackageForTable("events")
	if err != nil {
		t.Fatalf("PackageForTable() error = %v", err)
	}
	if gotPkg != pkg {
		t.Errorf("PackageForTable() = %q, want %q", gotPkg, pkg)
	}

	codec, err := reg.Codec(class)
	if err != nil {
		t.Fatalf("Codec() error = %v", err)
	}
	if len(codec.Columns()) != 2 {
		t.Errorf("codec columns = %v", codec.Columns())
	}
}

func TestRegistry_UnknownTable(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.ClassForTable("missing"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("ClassForTable() error = %v, want ErrClassNotFound", err)
	}
	if _, err := reg.PackageForTable("missing"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("PackageForTable() error = %v, want ErrPackageNotFound", err)
	}
	if _, err := reg.Codec("export.missingRecord"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("Codec() error = %v, want ErrClassNotFound", err)
	}
}

func TestRegistry_LeaseLifecycle(t *testing.T) {
	reg := NewRegistry()
	_, pkg := reg.RegisterDelimitedTable("events", []string{"id"}, ",")

	lease, err := reg.Acquire(pkg)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := reg.ActiveLeases(pkg); got != 1 {
		t.Errorf("ActiveLeases() = %d after acquire, want 1", got)
	}

	lease.Release()
	if got := reg.ActiveLeases(pkg); got != 0 {
		t.Errorf("ActiveLeases() = %d after release, want 0", got)
	}

	// Release is idempotent.
	lease.Release()
	if got := reg.ActiveLeases(pkg); got != 0 {
		t.Errorf("ActiveLeases() = %d after double release, want 0", got)
	}
}

func TestRegistry_AcquireUnknownPackage(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Acquire("nope"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("Acquire() error = %v, want ErrPackageNotFound", err)
	}
}
