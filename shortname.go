package fatcore

import (
	"strings"

	"github.com/aligator/gofat/checkpoint"
)

// NewShortName converts a file name like "README.TXT" to the padded 11 byte
// form it has on disk ("README  TXT"). The name is uppercased, the base is
// truncated to 8 and the extension to 3 characters. The special names "."
// and ".." are copied through as-is.
func NewShortName(name string) ([11]byte, error) {
	var short [11]byte
	for i := range short {
		short[i] = ' '
	}

	if name == "" || strings.ContainsAny(name, "/\\") {
		return short, checkpoint.From(ErrInvalidName)
	}

	if name == "." || name == ".." {
		copy(short[:], name)
		return short, nil
	}

	base := strings.ToUpper(name)
	ext := ""
	if dot := strings.LastIndex(base, "."); dot != -1 {
		ext = base[dot+1:]
		base = base[:dot]
	}

	if len(base) > 8 {
		base = base[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}

	copy(short[0:8], base)
	copy(short[8:11], ext)

	return short, nil
}

// ShortNameString formats an on-disk 11 byte name back into the usual
// "BASE.EXT" form.
func ShortNameString(short [11]byte) string {
	base := strings.TrimRight(string(short[:8]), " ")
	ext := strings.TrimRight(string(short[8:11]), " ")

	if ext != "" {
		base += "."
	}

	return base + ext
}

// NameString returns the record's name in the usual "BASE.EXT" form.
func (e *DirEntry) NameString() string {
	return ShortNameString(e.Name)
}
