package storage

import (
	"errors"
)

type DistributionStorageFilesystem struct {
	RootDirectory string `yaml:"rootdirectory"`
}

type DistributionStorageS3 struct {
	AccessKey      string  `yaml:"accesskey"`
	SecretKey      string  `yaml:"secretkey"`
	Bucket         string  `yaml:"bucket"`
	Region         *string `yaml:"region"`
	RegionEndpoint *string `yaml:"regionendpoint"`
	RootDirectory  string  `yaml:"rootdirectory"`
}

type Config struct {
	Filesystem *DistributionStorageFilesystem `yaml:"filesystem"`
	S3         *DistributionStorageS3         `yaml:"s3"`
}

func (c *Config) Configured() bool {
	return c.Filesystem != nil || c.S3 != nil
}

func (c *Config) Validate() error {
	if c.Filesystem != nil && c.S3 != nil {
		return errors.New("multiple storages defined")
	}
	if c.S3 != nil && c.S3.Bucket == "" {
		return errors.New("s3 storage requires a bucket")
	}
	return nil
}

// FromConfig returns nil when no storage is configured.
func FromConfig(config *Config) (StorageObject, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	if !config.Configured() {
		return nil, nil
	}

	if config.Filesystem != nil {
		return newFilesystemStorage(config.Filesystem)
	} else if config.S3 != nil {
		return newS3Storage(config.S3)
	}
	return nil, nil
}
