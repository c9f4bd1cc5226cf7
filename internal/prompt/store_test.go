package prompt

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if store.Get() != DefaultPrompts {
		t.Errorf("prompts = %+v, want defaults", store.Get())
	}
}

func TestStoreLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"common":"file common","explain":"file explain","idea":"file idea"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	got := store.Get()
	if got.Common != "file common" || got.Explain != "file explain" || got.Idea != "file idea" {
		t.Errorf("prompts = %+v", got)
	}
}

func TestStorePartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"common":"only common"}`), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	got := store.Get()
	if got.Common != "only common" {
		t.Errorf("common = %q", got.Common)
	}
	if got.Explain != DefaultPrompts.Explain || got.Idea != DefaultPrompts.Idea {
		t.Errorf("missing fields not defaulted: %+v", got)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path, testLogger()); err == nil {
		t.Error("NewStore() accepted a corrupt settings file")
	}
}

func TestStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	updated := Prompts{Common: "new common", Explain: "new explain", Idea: "new idea"}
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if store.Get() != updated {
		t.Errorf("prompts after update = %+v", store.Get())
	}

	// The file must hold the same values, and no temp file may remain.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	var onDisk Prompts
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("settings file not valid JSON: %v", err)
	}
	if onDisk != updated {
		t.Errorf("on disk = %+v", onDisk)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after update")
	}
}

func TestStoreUpdateFillsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Update(Prompts{Common: "only common"}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	got := store.Get()
	if got.Explain != DefaultPrompts.Explain || got.Idea != DefaultPrompts.Idea {
		t.Errorf("empty fields not defaulted: %+v", got)
	}
}

func TestStoreWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Watch(); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	content := `{"common":"edited","explain":"edited","idea":"edited"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if store.Get().Common == "edited" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("settings not reloaded after file change: %+v", store.Get())
}
