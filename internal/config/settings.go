package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SettingsDir is the directory name under XDG_CONFIG_HOME.
	SettingsDir = "shelf"
	// SettingsFile is the settings file name.
	SettingsFile = "settings.yml"
)

// File move manners.
const (
	MannerCopy = "copy"
	MannerLink = "link"
)

// Export path types.
const (
	PathRelative = "relative"
	PathAbsolute = "absolute"
)

// Default settings values.
const (
	DefaultAutoSaveMin       = 1
	DefaultDuplicateMinScore = 60
)

// SearchFieldNames lists the field names accepted by search/search_fields.
var SearchFieldNames = []string{
	"Authors", "Title", "Keywords", "Tags", "Notes",
	"Publication", "Abstract", "Citationkey", "PDF",
}

// ErrUnknownKey is returned by Get and Set for keys outside the settings surface.
var ErrUnknownKey = errors.New("unknown settings key")

// Settings is the user settings surface stored in ~/.config/shelf/settings.yml.
type Settings struct {
	Saving            SavingSettings `yaml:"saving"`
	DuplicateMinScore int            `yaml:"duplicate_min_score"`
	Search            SearchSettings `yaml:"search"`
	Export            ExportSettings `yaml:"export"`
}

// SavingSettings controls where libraries live and how files are placed.
type SavingSettings struct {
	StorageFolder    string `yaml:"storage_folder,omitempty"`
	CurrentLibFolder string `yaml:"current_lib_folder,omitempty"`
	FileMoveManner   string `yaml:"file_move_manner"`
	RenameFiles      int    `yaml:"rename_files"`  // 0 keeps source names, 1 renames
	AutoSaveMin      int    `yaml:"auto_save_min"` // 0 disables auto-save
}

// SearchSettings controls the default search fields and folder scoping.
type SearchSettings struct {
	SearchFields []string `yaml:"search_fields,flow"`
	DesendFolder bool     `yaml:"desend_folder"`
}

// ExportSettings controls BibTeX and RIS export.
type ExportSettings struct {
	Bib BibExportSettings `yaml:"bib"`
	RIS RISExportSettings `yaml:"ris"`
}

// BibExportSettings controls BibTeX export.
type BibExportSettings struct {
	OmitFields []string `yaml:"omit_fields,flow"`
	PathType   string   `yaml:"path_type"`
}

// RISExportSettings controls RIS export.
type RISExportSettings struct {
	PathType string `yaml:"path_type"`
}

// DefaultSettings returns settings with every key at its default.
func DefaultSettings() *Settings {
	return &Settings{
		Saving: SavingSettings{
			FileMoveManner: MannerCopy,
			RenameFiles:    1,
			AutoSaveMin:    DefaultAutoSaveMin,
		},
		DuplicateMinScore: DefaultDuplicateMinScore,
		Search: SearchSettings{
			SearchFields: []string{"Authors", "Title", "Keywords", "Tags", "Publication", "Citationkey"},
			DesendFolder: true,
		},
		Export: ExportSettings{
			Bib: BibExportSettings{PathType: PathRelative},
			RIS: RISExportSettings{PathType: PathRelative},
		},
	}
}

// SettingsPath returns the path to the settings file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/shelf/settings.yml.
func SettingsPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, SettingsDir, SettingsFile)
}

// LoadSettings reads the settings file at path over the defaults.
// Returns the defaults (not an error) if the file doesn't exist.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	s.normalize()
	return s, nil
}

// Save writes the settings to path, creating its directory.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// normalize replaces out-of-range values with their defaults.
func (s *Settings) normalize() {
	if s.Saving.FileMoveManner != MannerCopy && s.Saving.FileMoveManner != MannerLink {
		s.Saving.FileMoveManner = MannerCopy
	}
	if s.Saving.RenameFiles != 0 {
		s.Saving.RenameFiles = 1
	}
	if s.Saving.AutoSaveMin < 0 {
		s.Saving.AutoSaveMin = 0
	}
	s.DuplicateMinScore = ClampScore(s.DuplicateMinScore)
	if s.Export.Bib.PathType != PathAbsolute {
		s.Export.Bib.PathType = PathRelative
	}
	if s.Export.RIS.PathType != PathAbsolute {
		s.Export.RIS.PathType = PathRelative
	}
}

// ClampScore clamps a duplicate threshold to 1..100.
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}

// Library returns the library named by current_lib_folder, or false if unset.
func (s *Settings) Library() (Library, bool) {
	if s.Saving.CurrentLibFolder == "" {
		return Library{}, false
	}
	return LibraryFromFolder(s.Saving.CurrentLibFolder), true
}

// Keys lists the slash-separated settings keys in display order.
func Keys() []string {
	return []string{
		"saving/storage_folder",
		"saving/current_lib_folder",
		"saving/file_move_manner",
		"saving/rename_files",
		"saving/auto_save_min",
		"duplicate_min_score",
		"search/search_fields",
		"search/desend_folder",
		"export/bib/omit_fields",
		"export/bib/path_type",
		"export/ris/path_type",
	}
}

// Get returns the string form of a slash-separated key.
// List values are comma-joined.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "saving/storage_folder":
		return s.Saving.StorageFolder, nil
	case "saving/current_lib_folder":
		return s.Saving.CurrentLibFolder, nil
	case "saving/file_move_manner":
		return s.Saving.FileMoveManner, nil
	case "saving/rename_files":
		return strconv.Itoa(s.Saving.RenameFiles), nil
	case "saving/auto_save_min":
		return strconv.Itoa(s.Saving.AutoSaveMin), nil
	case "duplicate_min_score":
		return strconv.Itoa(s.DuplicateMinScore), nil
	case "search/search_fields":
		return strings.Join(s.Search.SearchFields, ","), nil
	case "search/desend_folder":
		return strconv.FormatBool(s.Search.DesendFolder), nil
	case "export/bib/omit_fields":
		return strings.Join(s.Export.Bib.OmitFields, ","), nil
	case "export/bib/path_type":
		return s.Export.Bib.PathType, nil
	case "export/ris/path_type":
		return s.Export.RIS.PathType, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Set assigns a slash-separated key from its string form, validating the value.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "saving/storage_folder":
		if err := ValidateStorageFolder(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		s.Saving.StorageFolder = value
	case "saving/current_lib_folder":
		s.Saving.CurrentLibFolder = value
	case "saving/file_move_manner":
		if value != MannerCopy && value != MannerLink {
			return fmt.Errorf("invalid %s %q: must be %s or %s", key, value, MannerCopy, MannerLink)
		}
		s.Saving.FileMoveManner = value
	case "saving/rename_files":
		n, err := strconv.Atoi(value)
		if err != nil || (n != 0 && n != 1) {
			return fmt.Errorf("invalid %s %q: must be 0 or 1", key, value)
		}
		s.Saving.RenameFiles = n
	case "saving/auto_save_min":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s %q: must be a non-negative integer", key, value)
		}
		s.Saving.AutoSaveMin = n
	case "duplicate_min_score":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		s.DuplicateMinScore = ClampScore(n)
	case "search/search_fields":
		fields := splitList(value)
		for _, f := range fields {
			if !isSearchField(f) {
				return fmt.Errorf("invalid %s: unknown field %q", key, f)
			}
		}
		s.Search.SearchFields = fields
	case "search/desend_folder":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		s.Search.DesendFolder = b
	case "export/bib/omit_fields":
		s.Export.Bib.OmitFields = splitList(value)
	case "export/bib/path_type":
		if value != PathRelative && value != PathAbsolute {
			return fmt.Errorf("invalid %s %q: must be %s or %s", key, value, PathRelative, PathAbsolute)
		}
		s.Export.Bib.PathType = value
	case "export/ris/path_type":
		if value != PathRelative && value != PathAbsolute {
			return fmt.Errorf("invalid %s %q: must be %s or %s", key, value, PathRelative, PathAbsolute)
		}
		s.Export.RIS.PathType = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isSearchField(name string) bool {
	for _, f := range SearchFieldNames {
		if f == name {
			return true
		}
	}
	return false
}
