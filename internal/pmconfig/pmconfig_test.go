package pmconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fsConfig = `
[BASIC]
name_file_location = /etc/fgc-pm/names.txt
fs_fw_repo_location = /srv/firmware
expected_data_location = fs
pm_log_file_name = program_manager.log

[fs]
fw_subfolder = fw
db_subfolder = db
`

const dbConfig = `
[BASIC]
name_file_location = /etc/fgc-pm/names.txt
fs_fw_repo_location = /srv/firmware
expected_data_location = db
pm_log_file_name = program_manager.log

[db]
connection_string = postgres://localhost/pm
username = pm
password = secret
`

func writeIni(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pm_config.cfg")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDaemonConfigFS(t *testing.T) {
	cfg, err := LoadDaemonConfig(writeIni(t, fsConfig))
	require.NoError(t, err)
	assert.Equal(t, AdapterFS, cfg.Basic.ExpectedDataLocation)
	assert.Equal(t, "fw", cfg.FS.FWSubfolder)
	assert.Equal(t, "db", cfg.FS.DBSubfolder)
}

func TestLoadDaemonConfigDB(t *testing.T) {
	cfg, err := LoadDaemonConfig(writeIni(t, dbConfig))
	require.NoError(t, err)
	assert.Equal(t, AdapterDB, cfg.Basic.ExpectedDataLocation)
	assert.Equal(t, "pm", cfg.DB.Username)
}

func TestLoadDaemonConfigUnknownAdapter(t *testing.T) {
	_, err := LoadDaemonConfig(writeIni(t, "[BASIC]\nexpected_data_location = bogus\n"))
	assert.Error(t, err)
}

func TestPrefsRoundTrip(t *testing.T) {
	SetPrefsDir(t.TempDir())
	defer SetPrefsDir("")

	require.NoError(t, SetPref("socket_path", "/tmp/pm.sock"))
	v, err := GetPref("socket_path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pm.sock", v)
}

func TestPrefsUnknownKey(t *testing.T) {
	_, err := GetPref("nope.nope")
	assert.Error(t, err)
}
