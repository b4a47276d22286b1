package storage

// StorageObject archives run logs and reports.
type StorageObject interface {
	Write(path string, data []byte) error
	Info()
}

const archivePrefix = "registry-tag-purger"
