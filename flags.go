package tfs

import "strings"

// OpenFlag is a bitmask of options to Open.
type OpenFlag uint8

const (
	// Create creates the file if it does not already exist. If it does
	// exist, Open returns a handle to the existing file: creating an
	// existing name is idempotent, not an error.
	Create OpenFlag = 1 << iota

	// Truncate clears the target file's contents after resolving the
	// path, before the handle is returned. Any other open handle to the
	// same inode keeps its offset, which may now exceed the new size.
	Truncate

	// Append causes every Read/Write on the resulting handle to first
	// snap its offset to the file's current size.
	Append
)

func (f OpenFlag) String() string {
	if f == 0 {
		return "0"
	}
	var opt []string
	if f&Create != 0 {
		opt = append(opt, "Create")
	}
	if f&Truncate != 0 {
		opt = append(opt, "Truncate")
	}
	if f&Append != 0 {
		opt = append(opt, "Append")
	}
	return strings.Join(opt, "|")
}

// Has reports whether all bits of mask are set in f.
func (f OpenFlag) Has(mask OpenFlag) bool {
	return f&mask == mask
}
