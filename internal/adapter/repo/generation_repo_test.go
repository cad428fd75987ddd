package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"genstudio/internal/domain"
	"genstudio/internal/sqlinline"
)

func generationRow(id string, status string, updated time.Time) []any {
	return []any{
		id, "user-1", "fal-ai/flux/dev", "text-to-image", "req-1", status, "a cat",
		[]byte(`{"prompt":"a cat"}`), []byte(nil), "", "", updated, updated,
	}
}

func TestGenerationCreate(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewGenerationRepository(exec)
	gen := &domain.Generation{ID: "g1", ModelID: "m", Status: domain.JobStatusInQueue, RequestJSON: []byte(`{}`)}
	if err := repo.Create(context.Background(), gen); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gen.CreatedAt.IsZero() || !gen.UpdatedAt.Equal(gen.CreatedAt) {
		t.Fatalf("timestamps not set: %#v", gen)
	}
	call := exec.calls[0]
	if call.query != sqlinline.QInsertGeneration || len(call.args) != 12 {
		t.Fatalf("unexpected call %#v", call)
	}
	if call.args[5] != "in_queue" {
		t.Fatalf("status arg = %v", call.args[5])
	}
	if call.args[8] != nil {
		t.Fatalf("empty result must be NULL, got %v", call.args[8])
	}
}

func TestGenerationUpdate(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewGenerationRepository(exec)
	status := domain.JobStatusCompleted
	if err := repo.Update(context.Background(), "g1", domain.GenerationPatch{Status: &status, ResultJSON: []byte(`{"images":[]}`)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	args := exec.calls[0].args
	if s, ok := args[2].(*string); !ok || *s != "completed" {
		t.Fatalf("status arg = %#v", args[2])
	}
	if rid, ok := args[1].(*string); !ok || rid != nil {
		t.Fatalf("request id must be a nil *string, got %#v", args[1])
	}
}

func TestGenerationUpdateMissing(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewGenerationRepository(exec).Update(context.Background(), "nope", domain.GenerationPatch{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestGenerationUpdateInFlight(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewGenerationRepository(exec)
	status := domain.JobStatusCompleted
	won, err := repo.UpdateInFlight(context.Background(), "g1", domain.GenerationPatch{Status: &status})
	if err != nil || !won {
		t.Fatalf("UpdateInFlight = %v, %v", won, err)
	}
	if exec.calls[0].query != sqlinline.QUpdateInFlightGeneration {
		t.Fatal("conditional statement not used")
	}
	if s, ok := exec.calls[0].args[2].(*string); !ok || *s != "completed" {
		t.Fatalf("status arg = %#v", exec.calls[0].args[2])
	}
}

func TestGenerationUpdateInFlightLost(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	won, err := NewGenerationRepository(exec).UpdateInFlight(context.Background(), "g1", domain.GenerationPatch{})
	if err != nil || won {
		t.Fatalf("UpdateInFlight = %v, %v; want false, nil", won, err)
	}
}

func TestGenerationGetByID(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exec := &stubExecutor{row: generationRow("g1", "in_progress", now)}
	gen, err := NewGenerationRepository(exec).GetByID(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if gen.Status != domain.JobStatusInProgress || gen.Kind != domain.KindTextToImage || gen.RequestID != "req-1" {
		t.Fatalf("gen = %#v", gen)
	}
	if !gen.UpdatedAt.Equal(now) {
		t.Fatalf("updated at = %v", gen.UpdatedAt)
	}
}

func TestGenerationGetByIDNotFound(t *testing.T) {
	_, err := NewGenerationRepository(&stubExecutor{}).GetByID(context.Background(), "g1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerationGetByIDError(t *testing.T) {
	_, err := NewGenerationRepository(&stubExecutor{rowErr: errors.New("boom")}).GetByID(context.Background(), "g1")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerationListInFlight(t *testing.T) {
	now := time.Now().UTC()
	exec := &stubExecutor{rows: [][]any{
		generationRow("g1", "in_queue", now),
		generationRow("g2", "in_progress", now),
	}}
	cutoff := now.Add(-time.Minute)
	gens, err := NewGenerationRepository(exec).ListInFlight(context.Background(), cutoff, 0)
	if err != nil {
		t.Fatalf("ListInFlight: %v", err)
	}
	if len(gens) != 2 || gens[1].ID != "g2" {
		t.Fatalf("gens = %#v", gens)
	}
	args := exec.calls[0].args
	if args[0] != cutoff || args[1] != 50 {
		t.Fatalf("args = %#v", args)
	}
}
