// Package config loads the sheetcal config file. JSON5 is the default
// format; a .yaml or .yml path is read and written as YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/steipete/sheetcal/internal/layout"
)

const (
	BackendGoogle = "google"
	BackendICS    = "ics"
	BackendSQLite = "sqlite"

	DefaultSchedule = "*/5 * * * *"
)

var (
	errUnknownBackend  = errors.New("unknown calendar backend")
	errMissingPath     = errors.New("calendar.path is required for this backend")
	errMissingSheetID  = errors.New("spreadsheet_id is required")
	errInvalidTimezone = errors.New("invalid timezone")
)

type CalendarConfig struct {
	// Backend is google, ics or sqlite.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// ID is the Google calendar id (default primary).
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Path is the .ics file or SQLite database for local backends.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type WatchConfig struct {
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// File is the on-disk configuration.
type File struct {
	Account            string         `json:"account,omitempty" yaml:"account,omitempty"`
	Client             string         `json:"client,omitempty" yaml:"client,omitempty"`
	SpreadsheetID      string         `json:"spreadsheet_id,omitempty" yaml:"spreadsheet_id,omitempty"`
	Timezone           string         `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Calendar           CalendarConfig `json:"calendar" yaml:"calendar"`
	Layout             layout.Layout  `json:"layout" yaml:"layout"`
	Watch              WatchConfig    `json:"watch" yaml:"watch"`
	ServiceAccountFile string         `json:"service_account_file,omitempty" yaml:"service_account_file,omitempty"`
	KeyringBackend     string         `json:"keyring_backend,omitempty" yaml:"keyring_backend,omitempty"`
}

// Default is the config used when no file exists.
func Default() File {
	return File{
		Calendar: CalendarConfig{Backend: BackendGoogle},
		Layout:   layout.Default(),
		Watch:    WatchConfig{Schedule: DefaultSchedule},
	}
}

// Normalize fills zero values with defaults.
func (f *File) Normalize() {
	f.Calendar.Backend = strings.ToLower(strings.TrimSpace(f.Calendar.Backend))
	if f.Calendar.Backend == "" {
		f.Calendar.Backend = BackendGoogle
	}
	if strings.TrimSpace(f.Watch.Schedule) == "" {
		f.Watch.Schedule = DefaultSchedule
	}
	def := layout.Default()
	if f.Layout.DownloadControl == "" && f.Layout.PeriodStart == "" && f.Layout.PeriodEnd == "" &&
		len(f.Layout.Columns) == 0 && len(f.Layout.Headers) == 0 {
		sheet := f.Layout.Sheet
		f.Layout = def
		f.Layout.Sheet = sheet
	}
	if f.Layout.FirstDataRow == 0 {
		f.Layout.FirstDataRow = def.FirstDataRow
	}
}

// Validate checks the fields every command needs.
func (f File) Validate() error {
	switch f.Calendar.Backend {
	case BackendGoogle:
	case BackendICS, BackendSQLite:
		if strings.TrimSpace(f.Calendar.Path) == "" {
			return fmt.Errorf("%s: %w", f.Calendar.Backend, errMissingPath)
		}
	default:
		return fmt.Errorf("%w: %q (expected google, ics or sqlite)", errUnknownBackend, f.Calendar.Backend)
	}
	if strings.TrimSpace(f.SpreadsheetID) == "" {
		return errMissingSheetID
	}
	if _, err := f.Location(); err != nil {
		return err
	}
	if _, err := f.Layout.Compile(); err != nil {
		return err
	}
	return nil
}

// Location loads Timezone. An empty timezone returns nil so callers can
// fall back to the calendar's zone.
func (f File) Location() (*time.Location, error) {
	tz := strings.TrimSpace(f.Timezone)
	if tz == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errInvalidTimezone, tz, err)
	}
	return loc, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ReadConfig reads the file at ConfigPath. A missing file yields Default.
func ReadConfig() (File, error) {
	path, err := ConfigPath()
	if err != nil {
		return File{}, err
	}
	return ReadConfigFrom(path)
}

func ReadConfigFrom(path string) (File, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // config path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return File{}, fmt.Errorf("read config: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json5.Unmarshal(data, &cfg)
	}
	if err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// WriteConfig writes cfg to ConfigPath atomically.
func WriteConfig(cfg File) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return WriteConfigTo(path, cfg)
}

func WriteConfigTo(path string, cfg File) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

// Template is written by `config init`. It is valid JSON5.
const Template = `{
  // Google account used for the Sheets and Calendar APIs.
  account: "",
  spreadsheet_id: "",
  // IANA zone; empty uses the calendar's zone.
  timezone: "",
  calendar: {
    backend: "google", // google | ics | sqlite
    id: "primary",
    path: "",
  },
  layout: {
    sheet: "",
    download_control: "B1",
    period_start: "B2",
    period_end: "B3",
    first_data_row: 6,
    columns: { id: "A", title: "B", date: "C", time: "D", duration: "E", upload: "F" },
    status_column_mode: "right_of_upload",
    date_order: "day_first",
  },
  watch: {
    schedule: "*/5 * * * *",
  },
}
`

// TemplateYAML is the YAML flavor of Template.
const TemplateYAML = `# Google account used for the Sheets and Calendar APIs.
account: ""
spreadsheet_id: ""
# IANA zone; empty uses the calendar's zone.
timezone: ""
calendar:
  backend: google # google | ics | sqlite
  id: primary
  path: ""
layout:
  download_control: B1
  period_start: B2
  period_end: B3
  first_data_row: 6
  columns: {id: A, title: B, date: C, time: D, duration: E, upload: F}
  status_column_mode: right_of_upload
  date_order: day_first
watch:
  schedule: "*/5 * * * *"
`

// Init writes the commented template to path unless a file already exists.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	body := Template
	if isYAML(path) {
		body = TemplateYAML
	}
	return writeFileAtomic(path, []byte(body))
}
