package firmware

import (
	"fmt"
	"os"
)

// VerifyCRC recomputes a CRC-16/CCITT-FALSE over the raw firmware bytes and
// compares it against the four hex characters encoded in the filename. It
// is never called automatically by the transfer state: the board itself
// validates REGFGC3.PROG.BIN_CRC during PROG_CHK, so this is strictly an
// opt-in sanity check for operators who want to catch a stale or
// mis-renamed file before it reaches the wire.
func VerifyCRC(f *File) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	got := crc16CCITT(data)
	want := f.CRC
	gotHex := fmt.Sprintf("%04X", got)
	if gotHex != want {
		return fmt.Errorf("firmware %q: computed CRC %s does not match filename CRC %s", f.Path, gotHex, want)
	}
	return nil
}

// crc16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16CCITT(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
