// Package model holds the data types shared by the adapter, slot-info parser,
// FSM and reconciliation job: devices, boards, inventories and job keys.
package model

// Device is an addressable firmware target on a board (DB, MF, DEVICE_2..5).
// All fields are opaque strings taken verbatim from the wire or the expected
// inventory file; the core never interprets them beyond equality.
type Device struct {
	Name            string
	Variant         string
	VariantRevision string
	APIRevision     string
}

// Board boot modes.
const (
	StateDownloadBoot   = "DownloadBoot"
	StateProductionBoot = "ProductionBoot"
)

// DownloadBootVariant is the DB device variant that marks a board as actually
// reprogrammable, as opposed to merely reporting StateDownloadBoot.
const DownloadBootVariant = "DOWNLDBOOT_3"

// Board is hardware in a numbered slot: a boot-mode state and its devices.
type Board struct {
	Slot    string
	Type    string
	State   string
	Devices map[string]Device
}

// IsInDownloadBoot reports whether b can be reprogrammed: it must report
// StateDownloadBoot and carry a DB device whose variant is DownloadBootVariant.
// Both conditions are required; a board with no DB device is never
// reprogrammable, regardless of its reported state.
func (b Board) IsInDownloadBoot() bool {
	if b.State != StateDownloadBoot {
		return false
	}
	db, ok := b.Devices["DB"]
	if !ok {
		return false
	}
	return db.Variant == DownloadBootVariant
}

// SlotInventory is the detected board/device map for one converter, derived
// from a single SLOT_INFO reply. Purely in-memory; never persisted.
type SlotInventory map[string]Board

// ExpectedBoard is the expected-inventory counterpart of Board: it carries no
// state, because the expected inventory is boot-mode independent.
type ExpectedBoard struct {
	Type    string
	Devices map[string]Device
}

// ExpectedInventory is the expected board/device map for one converter,
// obtained from an Adapter.
type ExpectedInventory map[string]ExpectedBoard

// JobKey identifies a unit of reconciliation work. It is the converter name:
// at most one JobKey may be in flight per area worker pool at any instant.
type JobKey string

// ProgramRequest is the immutable argument set for one ProgramFSM run.
type ProgramRequest struct {
	Converter       string
	Slot            string
	Board           string
	Device          string
	Variant         string
	VariantRevision string
	APIRevision     string
	BinCRC          string // 16-bit hex, e.g. "1A2B"
	FWFilePath      string
}

// DifferingDevice names one (slot, device) pair where the expected and
// detected (variant, var_revision) disagree.
type DifferingDevice struct {
	Slot   string
	Board  Board
	Device string
}

// Diff returns every (slot, device) pair whose (variant, var_revision) differs
// between expected and detected. Devices present in only one of the two
// inventories do not count as differences here: the reconciliation job only
// ever reprograms a device it can already see detected on the board.
func Diff(detected SlotInventory, expected ExpectedInventory) []DifferingDevice {
	var out []DifferingDevice
	for slot, board := range detected {
		exp, ok := expected[slot]
		if !ok {
			continue
		}
		for name, dev := range board.Devices {
			expDev, ok := exp.Devices[name]
			if !ok {
				continue
			}
			if dev.Variant != expDev.Variant || dev.VariantRevision != expDev.VariantRevision {
				out = append(out, DifferingDevice{Slot: slot, Board: board, Device: name})
			}
		}
	}
	return out
}
