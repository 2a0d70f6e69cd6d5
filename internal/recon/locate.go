package recon

import (
	"os"
	"path/filepath"

	"github.com/ghabrous/fgc-pm/internal/firmware"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

// LocateInRepo returns a FirmwareLocator that scans repoRoot for a file
// whose naming-convention fields match the differing device's expected
// (device, variant, var_revision) triple. The original leaves this lookup
// implicit — the CLI tool takes a firmware path argument directly — so
// this is the daemon's own naming-convention-driven equivalent, described
// in §4.3 of the expanded spec.
func LocateInRepo(repoRoot string) FirmwareLocator {
	return func(dev model.DifferingDevice, expected model.ExpectedInventory) (string, error) {
		board, ok := expected[dev.Slot]
		if !ok {
			return "", pmerrors.NotFound("no expected board for slot %s", dev.Slot)
		}
		expDev, ok := board.Devices[dev.Device]
		if !ok {
			return "", pmerrors.NotFound("no expected device %s in slot %s", dev.Device, dev.Slot)
		}

		var found string
		err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || found != "" {
				return err
			}
			fields, perr := firmware.ParseName(path)
			if perr != nil {
				return nil
			}
			if fields.Device == expDev.Name && fields.Variant == expDev.Variant && fields.VariantRevision == expDev.VariantRevision {
				found = path
			}
			return nil
		})
		if err != nil {
			return "", pmerrors.RpcFailure(err, "scanning firmware repository %s", repoRoot)
		}
		if found == "" {
			return "", pmerrors.NotFound("no firmware file for device %s variant %s rev %s under %s",
				expDev.Name, expDev.Variant, expDev.VariantRevision, repoRoot)
		}
		return found, nil
	}
}
