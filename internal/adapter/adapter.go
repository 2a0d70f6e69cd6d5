// Package adapter resolves the expected firmware inventory for a converter,
// behind one interface with a filesystem-backed and a database-backed
// implementation. Grounded on
// original_source/program_manager/adapters.py: get_adapter's dispatch,
// Adapter's no-op base methods (get_detected/record_detected are
// deliberately not carried into the Go interface — see DESIGN.md), and
// FileSystemAdapter's mtime cache / _parse_expected_file.
package adapter

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/im7mortal/kmutex"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

// Adapter resolves the expected inventory for one converter. GetExpected
// returns (nil, nil) when the backing source has not changed since the
// last call for that converter — callers (the reconciliation job) treat a
// nil inventory as "nothing to do this cycle", mirroring
// FileSystemAdapter.get_expected returning None on an unchanged mtime.
type Adapter interface {
	GetExpected(ctx context.Context, converter string) (model.ExpectedInventory, error)
}

// FilesystemAdapter reads one expected-inventory file per converter from a
// directory, re-parsing only when the file's mtime has advanced since the
// last call. Access per converter is serialized with a kmutex keyed on the
// converter name, so two reconciliation jobs racing on the same converter
// never interleave a read with a concurrent re-check of its cached mtime.
type FilesystemAdapter struct {
	dbFiles string // directory of per-converter expected-inventory files
	locks   *kmutex.Kmutex

	mu          sync.Mutex
	lastUpdated map[string]int64
}

// NewFilesystemAdapter builds an adapter rooted at dbDir, the directory
// holding one expected-inventory file per converter (the "db_subfolder" of
// the original's FileSystemAdapter).
func NewFilesystemAdapter(dbDir string) *FilesystemAdapter {
	return &FilesystemAdapter{
		dbFiles:     dbDir,
		locks:       kmutex.New(),
		lastUpdated: make(map[string]int64),
	}
}

func (a *FilesystemAdapter) GetExpected(_ context.Context, converter string) (model.ExpectedInventory, error) {
	a.locks.Lock(converter)
	defer func() { _ = a.locks.Unlock(converter) }()

	path := filepath.Join(a.dbFiles, converter)
	info, err := os.Stat(path)
	if err != nil {
		return nil, pmerrors.NotFound("expected inventory for %s: %v", converter, err)
	}
	mtime := info.ModTime().Unix()

	a.mu.Lock()
	last, seen := a.lastUpdated[converter]
	a.mu.Unlock()

	if seen && mtime <= last {
		return nil, nil
	}

	inv, err := parseExpectedFile(path)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.lastUpdated[converter] = mtime
	a.mu.Unlock()

	return inv, nil
}

// parseExpectedFile reads lines of "slot,board,device,variant,var_rev,
// api_rev", skipping blank lines and "#"-prefixed comments, the Go
// equivalent of _parse_expected_file. A repeated (slot, device) row is a
// hard parse error rather than a silent overwrite.
func parseExpectedFile(path string) (model.ExpectedInventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pmerrors.NotFound("expected inventory file %q: %v", path, err)
	}
	defer f.Close()

	inv := make(model.ExpectedInventory)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 6 {
			return nil, pmerrors.NewParseError(line, lineNo, "expected 6 comma-separated fields")
		}
		slot, board := fields[0], fields[1]
		dev := model.Device{
			Name:            fields[2],
			Variant:         fields[3],
			VariantRevision: fields[4],
			APIRevision:     fields[5],
		}

		key := slot + "," + dev.Name
		if seen[key] {
			return nil, pmerrors.NewParseError(line, lineNo, "duplicate (slot, device) row for "+key)
		}
		seen[key] = true

		eb, ok := inv[slot]
		if !ok {
			eb = model.ExpectedBoard{Type: board, Devices: make(map[string]model.Device)}
		}
		eb.Devices[dev.Name] = dev
		inv[slot] = eb
	}
	if err := scanner.Err(); err != nil {
		return nil, pmerrors.RpcFailure(err, "reading expected inventory file %q", path)
	}
	return inv, nil
}

// DatabaseAdapter resolves expected inventory from a SQL table instead of
// flat files, the Go counterpart of DbAdapter. Unlike the Python original
// (which left every method raising NotImplementedError), this backend is
// fully implemented against a concrete schema: one row per
// (converter, slot, device). Freshness uses MAX(updated_at) per converter
// in place of a file mtime, cached the same way FilesystemAdapter caches
// mtime, so it preserves the same Some/None/NotFound contract.
type DatabaseAdapter struct {
	db *sql.DB

	mu          sync.Mutex
	lastUpdated map[string]int64
}

// OpenDatabaseAdapter opens a sqlite3 database at dataSourceName holding
// the expected-inventory table. Nothing in this repository creates that
// schema; this constructor only validates connectivity.
func OpenDatabaseAdapter(dataSourceName string) (*DatabaseAdapter, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, pmerrors.RpcFailure(err, "opening expected-inventory database")
	}
	if err := db.Ping(); err != nil {
		return nil, pmerrors.RpcFailure(err, "connecting to expected-inventory database")
	}
	return &DatabaseAdapter{db: db, lastUpdated: make(map[string]int64)}, nil
}

// expectedInventoryFreshnessQuery returns the most recent updated_at across
// a converter's rows, used to short-circuit GetExpected without re-reading
// every row when nothing has changed since the last poll.
const expectedInventoryFreshnessQuery = `
SELECT MAX(updated_at) FROM expected_inventory WHERE converter = ?
`

// expectedInventoryQuery returns one row per (slot, board, device) for a
// converter, read from the expected_inventory table alone (no join).
const expectedInventoryQuery = `
SELECT slot, board, device, variant, var_revision, api_revision
FROM expected_inventory
WHERE converter = ?
`

func (a *DatabaseAdapter) GetExpected(ctx context.Context, converter string) (model.ExpectedInventory, error) {
	var maxUpdated sql.NullInt64
	if err := a.db.QueryRowContext(ctx, expectedInventoryFreshnessQuery, converter).Scan(&maxUpdated); err != nil {
		return nil, pmerrors.RpcFailure(err, "checking expected inventory freshness for %s", converter)
	}
	if !maxUpdated.Valid {
		return nil, pmerrors.NotFound("expected inventory for %s", converter)
	}

	a.mu.Lock()
	last, seen := a.lastUpdated[converter]
	a.mu.Unlock()
	if seen && maxUpdated.Int64 <= last {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, expectedInventoryQuery, converter)
	if err != nil {
		return nil, pmerrors.RpcFailure(err, "querying expected inventory for %s", converter)
	}
	defer rows.Close()

	inv := make(model.ExpectedInventory)
	for rows.Next() {
		var slot, board, device, variant, varRev, apiRev string
		if err := rows.Scan(&slot, &board, &device, &variant, &varRev, &apiRev); err != nil {
			return nil, pmerrors.RpcFailure(err, "scanning expected inventory row for %s", converter)
		}
		eb, ok := inv[slot]
		if !ok {
			eb = model.ExpectedBoard{Type: board, Devices: make(map[string]model.Device)}
		}
		eb.Devices[device] = model.Device{Name: device, Variant: variant, VariantRevision: varRev, APIRevision: apiRev}
		inv[slot] = eb
	}
	if err := rows.Err(); err != nil {
		return nil, pmerrors.RpcFailure(err, "reading expected inventory rows for %s", converter)
	}

	a.mu.Lock()
	a.lastUpdated[converter] = maxUpdated.Int64
	a.mu.Unlock()

	return inv, nil
}

// Close releases the underlying database connection.
func (a *DatabaseAdapter) Close() error {
	return a.db.Close()
}
