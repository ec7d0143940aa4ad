package config

import (
	"os"
	"testing"
)

func TestVerifyIntegrityWithoutManifestWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "service:\n  name: plugbus\n")

	result, err := VerifyIntegrity(dir)
	if err != nil {
		t.Fatalf("VerifyIntegrity() failed: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", result.Warnings)
	}
}

func TestVerifyIntegrityReportsMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "service:\n  name: plugbus\n")
	if _, err := Lock(dir); err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}

	result, err := VerifyIntegrity(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed || len(result.Warnings) != 0 {
		t.Fatalf("fresh lock should verify cleanly: %+v", result)
	}

	if err := os.WriteFile(path, []byte("service:\n  name: changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err = VerifyIntegrity(dir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed || len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", result)
	}
}

func TestVerifyIntegrityUnlistedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "service:\n  name: plugbus\n")
	writeFile(t, dir, ChecksumFile, "version: 1\nhashes: {}\n")

	result, err := VerifyIntegrity(dir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Passed {
		t.Fatal("file missing from manifest must fail")
	}
}
