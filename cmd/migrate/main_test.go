package main

import (
	"crypto/sha256"
	"regexp"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_bronze_purchase.sql", true, "0001", "create_bronze_purchase"},
		{"0003_create_bronze_purchase_extra_info.sql", true, "0003", "create_bronze_purchase_extra_info"},
		{"001_invalid.sql", false, "", ""},       // wrong number format
		{"0001_test", false, "", ""},             // missing .sql
		{"0001.sql", false, "", ""},              // missing name
		{"invalid_0001_test.sql", false, "", ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := pattern.FindStringSubmatch(tt.filename)
			if tt.valid {
				if matches == nil {
					t.Fatalf("Expected %s to match", tt.filename)
				}
				if matches[1] != tt.version || matches[2] != tt.name {
					t.Errorf("Got version=%s name=%s, want version=%s name=%s", matches[1], matches[2], tt.version, tt.name)
				}
			} else if matches != nil {
				t.Errorf("Expected %s NOT to match, got %v", tt.filename, matches)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content1 := []byte("CREATE TABLE test (id INT64);")
	content2 := []byte("CREATE TABLE test (id INT64);")
	content3 := []byte("CREATE TABLE different (id INT64);")

	if sha256.Sum256(content1) != sha256.Sum256(content2) {
		t.Error("Same content should produce the same checksum")
	}

	if sha256.Sum256(content1) == sha256.Sum256(content3) {
		t.Error("Different content should not produce the same checksum")
	}
}
