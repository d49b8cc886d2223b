// Package config loads runtime settings from flags and FILING_MERGER_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FILING_MERGER"

const (
	ModeServe = "serve"
	ModeRun   = "run"

	StorageDrive = "drive"
	StorageGCS   = "gcs"
	StorageLocal = "local"

	StatusMemory    = "memory"
	StatusSQLite    = "sqlite"
	StatusFirestore = "firestore"

	DispatchLocal     = "local"
	DispatchWorkflows = "workflows"
)

// Config holds every setting of the service and the CLI.
type Config struct {
	Mode     string
	Host     string
	Port     int
	LogLevel string
	Workers  int

	Storage  string
	Status   string
	Dispatch string

	// Google Cloud
	ProjectID           string
	FirestoreCollection string
	WorkflowLocation    string
	WorkflowID          string
	// OutputRootID is the Drive folder id or "bucket/prefix" that receives run folders.
	OutputRootID string

	// Local backends
	LocalRoot  string
	SQLitePath string
	StatusTTL  time.Duration

	// One-shot run
	InputFolder string
	Workbook    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeServe)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("storage", StorageDrive)
	v.SetDefault("status", StatusMemory)
	v.SetDefault("dispatch", DispatchLocal)
	v.SetDefault("firestore_collection", "merge_tasks")
	v.SetDefault("workflow_location", "us-central1")
	v.SetDefault("local_root", ".")
	v.SetDefault("sqlite_path", "filing-merger.db")
	v.SetDefault("status_ttl", time.Hour)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load parses args (without the program name) and the environment.
// Flags win over environment variables.
func Load(args []string) (*Config, error) {
	v := newViper()

	fs := pflag.NewFlagSet("filing-merger", pflag.ContinueOnError)
	fs.String("mode", v.GetString("mode"), "serve: HTTP API; run: one local run printing the result JSON")
	fs.String("host", v.GetString("host"), "listen host")
	fs.Int("port", v.GetInt("port"), "listen port")
	fs.String("log-level", v.GetString("log_level"), "debug, info, warn or error")
	fs.Int("workers", v.GetInt("workers"), "concurrent extraction workers")
	fs.String("storage", v.GetString("storage"), "document storage: drive, gcs or local")
	fs.String("status", v.GetString("status"), "task status store: memory, sqlite or firestore")
	fs.String("dispatch", v.GetString("dispatch"), "job dispatcher: local or workflows")
	fs.String("project-id", v.GetString("project_id"), "Google Cloud project")
	fs.String("firestore-collection", v.GetString("firestore_collection"), "Firestore collection for task status")
	fs.String("workflow-location", v.GetString("workflow_location"), "Cloud Workflows location")
	fs.String("workflow-id", v.GetString("workflow_id"), "Cloud Workflows workflow id")
	fs.String("output-root-id", v.GetString("output_root_id"), "folder that receives run folders")
	fs.String("local-root", v.GetString("local_root"), "root directory of local storage")
	fs.String("sqlite-path", v.GetString("sqlite_path"), "SQLite database for task status")
	fs.Duration("status-ttl", v.GetDuration("status_ttl"), "how long in-memory task status is kept")
	fs.String("input-folder", v.GetString("input_folder"), "folder of PDFs to process (run mode)")
	fs.String("workbook", v.GetString("workbook"), "client workbook .xlsx (run mode, optional)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv loads the configuration from the environment only.
func FromEnv() (*Config, error) {
	cfg := fromViper(newViper())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Mode:                v.GetString("mode"),
		Host:                v.GetString("host"),
		Port:                v.GetInt("port"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		Workers:             v.GetInt("workers"),
		Storage:             v.GetString("storage"),
		Status:              v.GetString("status"),
		Dispatch:            v.GetString("dispatch"),
		ProjectID:           v.GetString("project_id"),
		FirestoreCollection: v.GetString("firestore_collection"),
		WorkflowLocation:    v.GetString("workflow_location"),
		WorkflowID:          v.GetString("workflow_id"),
		OutputRootID:        v.GetString("output_root_id"),
		LocalRoot:           v.GetString("local_root"),
		SQLitePath:          v.GetString("sqlite_path"),
		StatusTTL:           v.GetDuration("status_ttl"),
		InputFolder:         v.GetString("input_folder"),
		Workbook:            v.GetString("workbook"),
	}
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}

// Validate checks that the settings name known backends and that every
// backend has what it needs.
func (c *Config) Validate() error {
	if err := oneOf("mode", c.Mode, ModeServe, ModeRun); err != nil {
		return err
	}
	if err := oneOf("log level", c.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("storage", c.Storage, StorageDrive, StorageGCS, StorageLocal); err != nil {
		return err
	}
	if err := oneOf("status", c.Status, StatusMemory, StatusSQLite, StatusFirestore); err != nil {
		return err
	}
	if err := oneOf("dispatch", c.Dispatch, DispatchLocal, DispatchWorkflows); err != nil {
		return err
	}
	if c.Mode == ModeServe && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Workers < 1 {
		return errors.New("workers must be positive")
	}
	if c.Status == StatusFirestore && c.ProjectID == "" {
		return errors.New("firestore status requires a project id")
	}
	if c.Status == StatusSQLite && c.SQLitePath == "" {
		return errors.New("sqlite status requires a database path")
	}
	if c.Storage == StorageGCS && c.OutputRootID == "" {
		return errors.New("gcs storage requires an output root (bucket/prefix)")
	}
	if c.Dispatch == DispatchWorkflows && (c.ProjectID == "" || c.WorkflowID == "") {
		return errors.New("workflows dispatch requires a project id and a workflow id")
	}
	if c.Mode == ModeRun {
		if c.Storage != StorageLocal {
			return errors.New("run mode only supports local storage")
		}
		if c.InputFolder == "" {
			return errors.New("run mode requires an input folder")
		}
	}
	return nil
}

// Address returns host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
