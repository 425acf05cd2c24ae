package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestNullableRoundTrip(t *testing.T) {
	if ns := nullable(nil); ns.Valid {
		t.Error("expected nil pointer to be NULL")
	}
	if p := stringOrNil(nullable(nil)); p != nil {
		t.Error("expected NULL to map back to nil")
	}

	s := "https://cdn.example.com/avatars/p-1/a.png"
	ns := nullable(&s)
	if !ns.Valid || ns.String != s {
		t.Errorf("unexpected NullString %+v", ns)
	}
	if p := stringOrNil(ns); p == nil || *p != s {
		t.Error("expected value to round-trip")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505"}

	if !isUniqueViolation(dup) {
		t.Error("expected 23505 to be a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) || isUniqueViolation(nil) {
		t.Error("expected non-pq errors to be ignored")
	}
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    []string
		wantErr bool
	}{
		{
			name: "adds defaults",
			url:  "postgres://u:p@localhost:5432/authcore?sslmode=disable",
			want: []string{"application_name=authcore", "connect_timeout=5", "sslmode=disable"},
		},
		{
			name: "keeps explicit values",
			url:  "postgresql://localhost/authcore?connect_timeout=30&application_name=migrator",
			want: []string{"application_name=migrator", "connect_timeout=30"},
		},
		{name: "empty", url: "", wantErr: true},
		{name: "wrong scheme", url: "mysql://localhost/authcore", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := DefaultConfig(tt.url).dsn()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got dsn %q", dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, part := range tt.want {
				if !strings.Contains(dsn, part) {
					t.Errorf("expected %q in %q", part, dsn)
				}
			}
		})
	}
}

func TestSchemaEmbedded(t *testing.T) {
	if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS users") {
		t.Error("expected embedded schema to create the users table")
	}
}

func TestLockKey(t *testing.T) {
	if lockKey("schema") != lockKey("schema") {
		t.Error("expected lock key to be stable")
	}
	if lockKey("schema") == lockKey("other") {
		t.Error("expected distinct names to map to distinct keys")
	}
}
