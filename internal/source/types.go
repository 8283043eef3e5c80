package source

// FileID identifies a translation unit inside a FileSet.
type FileID uint32

// NoFileID marks spans that do not belong to any translation unit.
const NoFileID FileID = 0
