// Package slotinfo parses the comma-delimited REGFGC3.SLOT_INFO reply into
// the model.SlotInventory the rest of the program manager operates on.
//
// Grounded on original_source/program_manager/regfgc3_programmer.py:
// parse_slot_info, _parse_single_slot and is_board_in_download_boot. The
// wire format is a flat comma-separated token stream, each token itself a
// whitespace-separated "KEY VALUE" pair:
//
//	SLOT 2,BOARD EDA_xxx,STATE DownloadBoot,Device DB,Variant DOWNLDBOOT_3,Var_Rev 1,API_Rev 2,Device MF,...,SLOT 3,...
//
// A new slot begins at each "SLOT" token; within a slot, a new device begins
// at each token whose key is "Device".
package slotinfo

import (
	"strings"

	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

// Parse turns one SLOT_INFO reply into a SlotInventory keyed by slot number.
func Parse(reply string) (model.SlotInventory, error) {
	tokens := strings.Split(reply, ",")

	var slotStarts []int
	for i, tok := range tokens {
		if strings.HasPrefix(strings.TrimSpace(tok), "SLOT") {
			slotStarts = append(slotStarts, i)
		}
	}
	if len(slotStarts) == 0 {
		return nil, pmerrors.NewParseError(reply, 0, "no SLOT markers found")
	}

	inventory := make(model.SlotInventory)
	for i, start := range slotStarts {
		end := len(tokens)
		if i+1 < len(slotStarts) {
			end = slotStarts[i+1]
		}
		board, slot, err := parseSingleSlot(tokens[start:end])
		if err != nil {
			return nil, err
		}
		inventory[slot] = board
	}
	return inventory, nil
}

// parseSingleSlot consumes one slot's token run: SLOT, BOARD and STATE
// first, then zero or more devices each starting at a "Device" token.
func parseSingleSlot(tokens []string) (model.Board, string, error) {
	var board model.Board
	board.Devices = make(map[string]model.Device)

	if len(tokens) < 3 {
		return board, "", pmerrors.NewParseError(strings.Join(tokens, ","), 0, "slot has fewer than 3 header tokens")
	}

	var devStarts []int
	for i, tok := range tokens {
		if key, _, ok := splitKV(tok); ok && key == "Device" {
			devStarts = append(devStarts, i)
		}
	}

	headerEnd := len(tokens)
	if len(devStarts) > 0 {
		headerEnd = devStarts[0]
	}

	for idx, tok := range tokens[:headerEnd] {
		key, val, ok := splitKV(tok)
		if !ok {
			continue
		}
		switch key {
		case "SLOT":
			board.Slot = val
		case "BOARD":
			board.Type = val
		case "STATE":
			board.State = val
		default:
			return board, "", pmerrors.NewParseError(tok, idx, "unexpected header key "+key)
		}
	}
	if board.Slot == "" {
		return board, "", pmerrors.NewParseError(strings.Join(tokens[:headerEnd], ","), 0, "missing SLOT")
	}

	for i, start := range devStarts {
		end := len(tokens)
		if i+1 < len(devStarts) {
			end = devStarts[i+1]
		}
		dev, err := parseSingleDevice(tokens[start:end])
		if err != nil {
			return board, "", err
		}
		board.Devices[dev.Name] = dev
	}

	return board, board.Slot, nil
}

func parseSingleDevice(tokens []string) (model.Device, error) {
	var dev model.Device
	for idx, tok := range tokens {
		key, val, ok := splitKV(tok)
		if !ok {
			continue
		}
		switch key {
		case "Device":
			dev.Name = val
		case "Variant":
			dev.Variant = val
		case "Var_Rev":
			dev.VariantRevision = val
		case "API_Rev":
			dev.APIRevision = val
		default:
			return dev, pmerrors.NewParseError(tok, idx, "unexpected device key "+key)
		}
	}
	if dev.Name == "" {
		return dev, pmerrors.NewParseError(strings.Join(tokens, ","), 0, "device token missing name")
	}
	return dev, nil
}

// splitKV splits a single "KEY VALUE" token on its first run of whitespace.
// A blank token (the trailing element the wire format leaves after its
// final comma) is not an error: it simply carries no key.
func splitKV(tok string) (key, val string, ok bool) {
	fields := strings.Fields(tok)
	switch len(fields) {
	case 0:
		return "", "", false
	case 1:
		return fields[0], "", true
	default:
		return fields[0], strings.Join(fields[1:], " "), true
	}
}
