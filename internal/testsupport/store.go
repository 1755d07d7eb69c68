package testsupport

import (
	"context"
	"testing"

	"kaizen/internal/catalog"
	"kaizen/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewStage creates a project with one stage and returns the stage.
func NewStage(t testing.TB, store *catalog.Store, name string) *catalog.Stage {
	t.Helper()

	ctx := context.Background()
	project, err := store.CreateProject(ctx, name+" project", "")
	if err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	stage, err := store.CreateStage(ctx, project.ID, name, "")
	if err != nil {
		t.Fatalf("store.CreateStage: %v", err)
	}
	return stage
}

// NewProcess appends a process to a stage.
func NewProcess(t testing.TB, store *catalog.Store, p catalog.Process) *catalog.Process {
	t.Helper()

	created, err := store.CreateProcess(context.Background(), p)
	if err != nil {
		t.Fatalf("store.CreateProcess: %v", err)
	}
	return created
}
