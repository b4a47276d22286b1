package storage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type fsStorage struct {
	*DistributionStorageFilesystem

	written     int32
	writtenSize int64
}

func (f *fsStorage) fullPath(path string) string {
	return filepath.Join(f.RootDirectory, archivePrefix, path)
}

func (f *fsStorage) Write(path string, data []byte) error {
	fullPath := f.fullPath(path)

	err := os.MkdirAll(filepath.Dir(fullPath), 0700)
	if err != nil {
		return err
	}

	err = ioutil.WriteFile(fullPath, data, 0600)
	if err != nil {
		return err
	}

	atomic.AddInt32(&f.written, 1)
	atomic.AddInt64(&f.writtenSize, int64(len(data)))
	return nil
}

func (f *fsStorage) Info() {
	logrus.Infoln("FS INFO: Written:", atomic.LoadInt32(&f.written),
		"Data:", humanize.Bytes(uint64(atomic.LoadInt64(&f.writtenSize))))
}

func newFilesystemStorage(config *DistributionStorageFilesystem) (StorageObject, error) {
	return &fsStorage{DistributionStorageFilesystem: config}, nil
}
