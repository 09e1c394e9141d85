package storage

import (
	"context"
	"errors"
	"testing"
)

func TestInsertRawCommands_Dedupes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	n, err := store.InsertRawCommands(ctx, userID, []string{
		"docker ps",
		"git status",
		"docker ps", // duplicate within the batch
		"  ",        // blank, skipped
	})
	if err != nil {
		t.Fatalf("InsertRawCommands() error = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	// Re-sending the same commands inserts nothing
	n, err = store.InsertRawCommands(ctx, userID, []string{"docker ps", "git status"})
	if err != nil {
		t.Fatalf("InsertRawCommands() error = %v", err)
	}
	if n != 0 {
		t.Errorf("re-insert = %d, want 0", n)
	}
}

func TestFindUnprocessedRawCommands(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	alice := newTestUser(t, store, "alice")
	bob := newTestUser(t, store, "bob")

	if _, err := store.InsertRawCommands(ctx, alice, []string{"docker ps", "git log"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertRawCommands(ctx, bob, []string{"kubectl get pods"}); err != nil {
		t.Fatal(err)
	}

	cmds, err := store.FindUnprocessedRawCommands(ctx, 50)
	if err != nil {
		t.Fatalf("FindUnprocessedRawCommands() error = %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("len = %d, want 3", len(cmds))
	}

	// Mark one of alice's commands processed; it must disappear
	if err := store.MarkCommandsProcessed(ctx, alice, []string{HashCommand("docker ps")}); err != nil {
		t.Fatalf("MarkCommandsProcessed() error = %v", err)
	}

	cmds, err = store.FindUnprocessedRawCommands(ctx, 50)
	if err != nil {
		t.Fatalf("FindUnprocessedRawCommands() error = %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("after mark, len = %d, want 2", len(cmds))
	}
	for _, c := range cmds {
		if c.UserID == alice && c.Command == "docker ps" {
			t.Error("processed command still returned")
		}
	}

	n, err := store.CountUnprocessedRawCommands(ctx)
	if err != nil {
		t.Fatalf("CountUnprocessedRawCommands() error = %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestMarkCommandsProcessed_ScopedToOwner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	alice := newTestUser(t, store, "alice")
	bob := newTestUser(t, store, "bob")

	if _, err := store.InsertRawCommands(ctx, alice, []string{"docker ps"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertRawCommands(ctx, bob, []string{"docker ps"}); err != nil {
		t.Fatal(err)
	}

	if err := store.MarkCommandsProcessed(ctx, alice, []string{HashCommand("docker ps")}); err != nil {
		t.Fatal(err)
	}

	cmds, err := store.FindUnprocessedRawCommands(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].UserID != bob {
		t.Errorf("expected only bob's command unprocessed, got %+v", cmds)
	}
}

func TestInsertEnhancedSnippet_Roundtrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	id, err := store.InsertEnhancedSnippet(ctx, userID, &NewEnhancedSnippet{
		Title:       "Docker Build and Run",
		Description: "Builds the image and runs it on port 3000.",
		Categories:  []string{"docker", "containers"},
		Fragments: []NewFragment{
			{FileName: "build.sh", Code: "docker build -t app .", Language: "bash", Position: 0},
			{FileName: "run.sh", Code: "docker run -p 3000:3000 app", Language: "bash", Position: 1},
		},
		AnalysisID:     "an-123",
		SourceCommands: []string{"docker build -t app .", "docker run -p 3000:3000 app"},
	})
	if err != nil {
		t.Fatalf("InsertEnhancedSnippet() error = %v", err)
	}

	got, err := store.GetSnippet(ctx, id)
	if err != nil {
		t.Fatalf("GetSnippet() error = %v", err)
	}
	if got.Title != "Docker Build and Run" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.IsRaw {
		t.Error("enhanced snippet must not carry the raw marker")
	}
	if len(got.Categories) != 2 {
		t.Errorf("Categories = %v, want 2", got.Categories)
	}
	if len(got.Fragments) != 2 {
		t.Fatalf("Fragments = %d, want 2", len(got.Fragments))
	}
	if got.Fragments[0].Position != 0 || got.Fragments[1].Position != 1 {
		t.Errorf("fragment positions = %d, %d", got.Fragments[0].Position, got.Fragments[1].Position)
	}
}

func TestInsertEnhancedSnippet_RequiresFragment(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	userID := newTestUser(t, store, "sean")
	_, err := store.InsertEnhancedSnippet(context.Background(), userID, &NewEnhancedSnippet{
		Title: "Empty",
	})
	if err == nil {
		t.Error("expected error for snippet without fragments")
	}
}

func TestFindSnippetByTitle_IgnoresRawRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	// A raw capture whose text equals a would-be title must not trip the
	// duplicate guard.
	if _, err := store.InsertRawCommands(ctx, userID, []string{"Deploy Script"}); err != nil {
		t.Fatal(err)
	}

	_, err := store.FindSnippetByTitle(ctx, userID, "Deploy Script")
	if !errors.Is(err, ErrSnippetNotFound) {
		t.Errorf("FindSnippetByTitle() error = %v, want ErrSnippetNotFound", err)
	}

	_, err = store.InsertEnhancedSnippet(ctx, userID, &NewEnhancedSnippet{
		Title:     "Deploy Script",
		Fragments: []NewFragment{{FileName: "deploy.sh", Code: "./deploy", Language: "bash"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.FindSnippetByTitle(ctx, userID, "Deploy Script")
	if err != nil {
		t.Fatalf("FindSnippetByTitle() error = %v", err)
	}
	if got.Title != "Deploy Script" {
		t.Errorf("Title = %q", got.Title)
	}

	// Other owners never see it
	other := newTestUser(t, store, "other")
	if _, err := store.FindSnippetByTitle(ctx, other, "Deploy Script"); !errors.Is(err, ErrSnippetNotFound) {
		t.Errorf("cross-owner lookup error = %v, want ErrSnippetNotFound", err)
	}
}

func TestDeleteRawCommandsByText(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	if _, err := store.InsertRawCommands(ctx, userID, []string{"docker ps", "git status"}); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteRawCommandsByText(ctx, userID, "docker ps")
	if err != nil {
		t.Fatalf("DeleteRawCommandsByText() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	cmds, err := store.FindUnprocessedRawCommands(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Command != "git status" {
		t.Errorf("remaining = %+v", cmds)
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	userID := newTestUser(t, store, "sean")

	key, err := store.CreateAPIKey(ctx, userID, "laptop")
	if err != nil {
		t.Fatalf("CreateAPIKey() error = %v", err)
	}

	got, err := store.ResolveAPIKey(ctx, key)
	if err != nil {
		t.Fatalf("ResolveAPIKey() error = %v", err)
	}
	if got != userID {
		t.Errorf("ResolveAPIKey() = %d, want %d", got, userID)
	}

	if _, err := store.ResolveAPIKey(ctx, "ss_bogus"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("bogus key error = %v, want ErrAPIKeyNotFound", err)
	}
}
