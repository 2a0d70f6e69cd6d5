// Package pmconfig reads the daemon's .ini configuration and the CLI
// tools' optional per-user TOML preferences.
//
// Grounded on original_source/program_manager/pm_main.py:read_config_file
// (the [BASIC]/[db]/[fs] sections) for DaemonConfig, and the teacher's
// internal/config/config.go (Load/Save/Get/Set by dotted key) for the
// TOML preferences file in prefs.go.
package pmconfig

import (
	"github.com/juju/errors"
	"gopkg.in/ini.v1"
)

// Adapter backend selectors, the Go values of the original's
// expected_data == "db"/"fs" string comparisons.
const (
	AdapterDB = "db"
	AdapterFS = "fs"
)

// BasicSection mirrors the [BASIC] section of pm_config.cfg.
type BasicSection struct {
	NameFileLocation      string
	FSFWRepoLocation      string
	ExpectedDataLocation  string // "db" or "fs"
	LogFileName           string
}

// DBSection mirrors [db], present only when ExpectedDataLocation == "db".
type DBSection struct {
	ConnectionString string
	Username         string
	Password         string
}

// FSSection mirrors [fs], present only when ExpectedDataLocation == "fs".
type FSSection struct {
	FWSubfolder string
	DBSubfolder string
}

// DaemonConfig is the fully parsed .ini configuration.
type DaemonConfig struct {
	Basic BasicSection
	DB    DBSection
	FS    FSSection
}

// LoadDaemonConfig reads and validates path the way read_config_file does:
// the DB or FS section is only required, and only read, for the adapter
// ExpectedDataLocation actually selects.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.Annotatef(err, "loading daemon config %q", path)
	}

	basicSec, err := f.GetSection("BASIC")
	if err != nil {
		return nil, errors.Annotate(err, "missing [BASIC] section")
	}

	cfg := &DaemonConfig{
		Basic: BasicSection{
			NameFileLocation:     basicSec.Key("name_file_location").String(),
			FSFWRepoLocation:     basicSec.Key("fs_fw_repo_location").String(),
			ExpectedDataLocation: basicSec.Key("expected_data_location").String(),
			LogFileName:          basicSec.Key("pm_log_file_name").String(),
		},
	}

	switch cfg.Basic.ExpectedDataLocation {
	case AdapterDB:
		dbSec, err := f.GetSection("db")
		if err != nil {
			return nil, errors.Annotate(err, "missing [db] section for expected_data_location=db")
		}
		cfg.DB = DBSection{
			ConnectionString: dbSec.Key("connection_string").String(),
			Username:         dbSec.Key("username").String(),
			Password:         dbSec.Key("password").String(),
		}
	case AdapterFS:
		fsSec, err := f.GetSection("fs")
		if err != nil {
			return nil, errors.Annotate(err, "missing [fs] section for expected_data_location=fs")
		}
		cfg.FS = FSSection{
			FWSubfolder: fsSec.Key("fw_subfolder").String(),
			DBSubfolder: fsSec.Key("db_subfolder").String(),
		}
	default:
		return nil, errors.Errorf("unknown expected_data_location %q (want %q or %q)",
			cfg.Basic.ExpectedDataLocation, AdapterDB, AdapterFS)
	}

	return cfg, nil
}
