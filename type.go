package tfs

// InodeType identifies what an inode holds: a regular file's bytes, or a
// directory's entry table.
type InodeType uint8

const (
	// FileType is a regular file inode.
	FileType InodeType = iota
	// DirectoryType is a directory inode. Only the root uses this type;
	// the engine has no nested directories.
	DirectoryType
)

func (t InodeType) String() string {
	switch t {
	case FileType:
		return "FileType"
	case DirectoryType:
		return "DirectoryType"
	default:
		return "InodeType(unknown)"
	}
}
