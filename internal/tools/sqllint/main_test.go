package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("package q\n\n"+body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunAcceptsStatementPackage(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("exit %d:\n%s", code, stderr.String())
	}
}

func TestRunReportsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", "const QBad = `select 1`\n")
	writeSource(t, dir, "b.go", "const Label = \"not sql at all\"\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "QBad") || strings.Contains(out, "Label") {
		t.Fatalf("report = %s", out)
	}
}

func TestRunReportsDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 0b7c2f0e-7f3c-4a8e-9b1d-5a1f7c2e9d10"
	writeSource(t, dir, "a.go", "const QOne = `"+marker+"\nselect 1`\n")
	writeSource(t, dir, "b.go", "const QTwo = `"+marker+"\nselect 2`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "marker already used by QOne") {
		t.Fatalf("report = %s", stderr.String())
	}
}

func TestRunSkipsTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a_test.go", "const QFixture = `select 1`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("exit %d:\n%s", code, stderr.String())
	}
}
