package sqlinline

import (
	"strings"
	"testing"
)

func TestSchemaOrder(t *testing.T) {
	if len(Schema) == 0 || Schema[0] != QCreateGenerationsTable {
		t.Fatal("generations must be created first")
	}
	assets := -1
	for i, stmt := range Schema {
		if stmt == QCreateAssetsTable {
			assets = i
		}
	}
	if assets < 1 {
		t.Fatal("generation_assets must follow generations")
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	for i, stmt := range Schema {
		if !strings.Contains(strings.ToLower(stmt), "if not exists") {
			t.Errorf("statement %d is not idempotent", i)
		}
	}
}
