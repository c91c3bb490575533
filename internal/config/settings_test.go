package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSettingsPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := SettingsPath(), "/custom/config/shelf/settings.yml"; got != want {
		t.Errorf("SettingsPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := SettingsPath(), filepath.Join(home, ".config", "shelf", "settings.yml"); got != want {
		t.Errorf("SettingsPath() = %q, want %q", got, want)
	}
}

func TestLoadSettings_NotFound(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if !reflect.DeepEqual(s, DefaultSettings()) {
		t.Errorf("LoadSettings() = %+v, want defaults", s)
	}
}

func TestLoadSettings_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	data := "saving:\n  file_move_manner: link\nduplicate_min_score: 250\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Saving.FileMoveManner != MannerLink {
		t.Errorf("FileMoveManner = %q, want link", s.Saving.FileMoveManner)
	}
	if s.DuplicateMinScore != 100 {
		t.Errorf("DuplicateMinScore = %d, want clamped 100", s.DuplicateMinScore)
	}
	if s.Saving.RenameFiles != 1 {
		t.Errorf("RenameFiles = %d, want default 1", s.Saving.RenameFiles)
	}
	if s.Export.Bib.PathType != PathRelative {
		t.Errorf("Bib.PathType = %q, want relative", s.Export.Bib.PathType)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte("saving: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("LoadSettings() should fail on malformed YAML")
	}
}

func TestSettings_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yml")
	s := DefaultSettings()
	s.Saving.CurrentLibFolder = "/data/refs/mylib"
	s.Export.Bib.OmitFields = []string{"abstract", "file"}

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	back, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if !reflect.DeepEqual(back, s) {
		t.Errorf("round trip = %+v, want %+v", back, s)
	}

	lib, ok := back.Library()
	if !ok || lib.DBPath != "/data/refs/mylib.sqlite" {
		t.Errorf("Library() = %+v, %v", lib, ok)
	}
}

func TestSettings_GetSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"saving/file_move_manner", "link", "link"},
		{"saving/rename_files", "0", "0"},
		{"saving/auto_save_min", "5", "5"},
		{"duplicate_min_score", "0", "1"},
		{"search/search_fields", "Title, PDF", "Title,PDF"},
		{"search/desend_folder", "false", "false"},
		{"export/bib/omit_fields", "abstract,file", "abstract,file"},
		{"export/bib/path_type", "absolute", "absolute"},
		{"export/ris/path_type", "absolute", "absolute"},
		{"saving/current_lib_folder", "/x/lib", "/x/lib"},
	}

	s := DefaultSettings()
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error = %v", tt.key, tt.value, err)
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%q) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSettings_SetRejects(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"saving/file_move_manner", "move"},
		{"saving/rename_files", "2"},
		{"saving/auto_save_min", "-1"},
		{"search/search_fields", "Title,Colour"},
		{"search/desend_folder", "maybe"},
		{"export/bib/path_type", "sideways"},
		{"saving/storage_folder", "/definitely/not/here"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := DefaultSettings()
			if err := s.Set(tt.key, tt.value); err == nil {
				t.Errorf("Set(%q, %q) should fail", tt.key, tt.value)
			}
		})
	}

	s := DefaultSettings()
	if err := s.Set("no/such/key", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownKey", err)
	}
	if _, err := s.Get("no/such/key"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(unknown) error = %v, want ErrUnknownKey", err)
	}
}

func TestKeysAreGettable(t *testing.T) {
	s := DefaultSettings()
	for _, key := range Keys() {
		if _, err := s.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}
