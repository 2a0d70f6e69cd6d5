// Package firmware loads a firmware binary off disk, chunks it into the
// hex-word packets the FSM's TRANSFERRING state writes to
// REGFGC3.PROG.BIN[i,], and validates the filename against the naming
// convention used to pick the four-character CRC and the variant/device/
// revision triple.
//
// Grounded on original_source/program_manager/pm_fsm.py (PmStateTransferring
// word-chunking) and regfgc3_programmer.py (FW_FILE_REGEX, _check_file_
// consistency, _get_crc_from_name).
package firmware

import (
	"encoding/hex"
	"os"
	"regexp"
	"strings"

	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

const (
	charsPerWord    = 8
	fileLimitBytes  = 4194304
	limitGwCmdWords = 66100
)

// fileRegex mirrors FW_FILE_REGEX: EDA_<digits>-<device>-<variant>_<rev>-<var_rev>-<api_rev>-<crc>.bin
var fileRegex = regexp.MustCompile(`EDA_\d{1,5}-([A-Z]{2,6}_*\d*)-([A-Z]+_\d+)-(\d*)-(\d*)-([0-9A-Z]{4})\.bin`)

// File is a firmware binary loaded off disk and split into fixed-size
// 4-byte words, ready to be handed to the FSM's transfer state.
type File struct {
	Path   string
	Size   int64
	Device string
	Variant string
	VariantRevision string
	APIRevision string
	CRC    string // 4 hex chars parsed from the filename
	Words  []string // each a "0x"-prefixed, zero-padded 8-hex-char word
}

// NameFields is the decoded filename of a firmware binary.
type NameFields struct {
	Device          string
	Variant         string
	VariantRevision string
	APIRevision     string
	CRC             string
}

// ParseName decodes a firmware filename against the naming convention.
// Returns a pmerrors ParseError if the name does not match.
func ParseName(path string) (NameFields, error) {
	base := path
	if idx := strings.LastIndexAny(path, "/\\"); idx >= 0 {
		base = path[idx+1:]
	}
	m := fileRegex.FindStringSubmatch(base)
	if m == nil {
		return NameFields{}, pmerrors.NewParseError(base, 0, "does not conform to firmware naming convention")
	}
	return NameFields{
		Device:          m[1],
		Variant:         m[2],
		VariantRevision: m[3],
		APIRevision:     m[4],
		CRC:             m[5],
	}, nil
}

// CheckConsistency verifies that the filename's encoded device/variant/
// var_revision fields agree with the caller-supplied values, as
// _check_file_consistency does before a program() run is allowed to start.
func CheckConsistency(path, wantDevice, wantVariant, wantVarRevision string) (NameFields, error) {
	fields, err := ParseName(path)
	if err != nil {
		return fields, err
	}
	if fields.Variant != wantVariant {
		return fields, pmerrors.NewInconsistent("variant", fields.Variant, wantVariant)
	}
	if fields.Device != wantDevice {
		return fields, pmerrors.NewInconsistent("device", fields.Device, wantDevice)
	}
	if fields.VariantRevision != wantVarRevision {
		return fields, pmerrors.NewInconsistent("var_revision", fields.VariantRevision, wantVarRevision)
	}
	return fields, nil
}

// Load reads path, validates its size against the (0, 4MiB] bound enforced
// by PmStateTransferring.run, and chunks it into 4-byte hex words.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, pmerrors.NotFound("firmware file %q: %v", path, err)
	}
	if info.Size() == 0 {
		return nil, pmerrors.NewSizeViolation(path, 0)
	}
	if info.Size() > fileLimitBytes {
		return nil, pmerrors.NewSizeViolation(path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pmerrors.NotFound("firmware file %q: %v", path, err)
	}

	fields, err := ParseName(path)
	if err != nil {
		return nil, err
	}

	words := wordsOf(data)
	return &File{
		Path:            path,
		Size:            info.Size(),
		Device:          fields.Device,
		Variant:         fields.Variant,
		VariantRevision: fields.VariantRevision,
		APIRevision:     fields.APIRevision,
		CRC:             fields.CRC,
		Words:           words,
	}, nil
}

// wordsOf splits data into 4-byte chunks and hex-encodes each, zero-padding
// a short final chunk to 8 hex characters — the Go equivalent of
// hexlify(word).decode() + right-padding in PmStateTransferring.run.
func wordsOf(data []byte) []string {
	var words []string
	for i := 0; i < len(data); i += 4 {
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		ascii := hex.EncodeToString(data[i:end])
		for len(ascii) < charsPerWord {
			ascii += "0"
		}
		words = append(words, "0x"+ascii)
	}
	return words
}

// Chunks groups f.Words into gateway-command-sized batches of at most
// limitGwCmdWords, mirroring the range(0, len(packet), LIMIT_GW_CMD_WORDS)
// loop that writes REGFGC3.PROG.BIN[i,].
func (f *File) Chunks() [][]string {
	var chunks [][]string
	for i := 0; i < len(f.Words); i += limitGwCmdWords {
		end := i + limitGwCmdWords
		if end > len(f.Words) {
			end = len(f.Words)
		}
		chunks = append(chunks, f.Words[i:end])
	}
	return chunks
}
