package archive

import (
	"encoding/binary"
	"strconv"
)

const classMagic = 0xCAFEBABE

// ClassMajor returns the major version from a class file header, or 0
// if hdr is not a class header.
func ClassMajor(hdr []byte) int {
	if len(hdr) < 8 || binary.BigEndian.Uint32(hdr[:4]) != classMagic {
		return 0
	}
	return int(binary.BigEndian.Uint16(hdr[6:8]))
}

// Release maps a class file major version to the compiler source/target
// level, e.g. 52 -> "1.8", 61 -> "17". Unknown versions return "".
func Release(major int) string {
	switch {
	case major >= 49 && major <= 52:
		return "1." + strconv.Itoa(major-44)
	case major >= 53 && major <= 66:
		return strconv.Itoa(major - 44)
	}
	return ""
}
