package storage

import (
	"bytes"
	"path/filepath"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type s3Storage struct {
	S3     s3iface.S3API
	config *DistributionStorageS3

	apiCalls  int64
	writeSize int64
}

func newS3Storage(config *DistributionStorageS3) (StorageObject, error) {
	awsConfig := aws.NewConfig()
	if config.AccessKey != "" || config.SecretKey != "" {
		awsConfig.WithCredentials(credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""))
	}
	if config.Region != nil {
		awsConfig.WithRegion(*config.Region)
	}
	if config.RegionEndpoint != nil {
		awsConfig.WithEndpoint(*config.RegionEndpoint)
		awsConfig.WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}

	return &s3Storage{
		S3:     s3.New(sess),
		config: config,
	}, nil
}

func (f *s3Storage) fullPath(path string) string {
	return filepath.Join(f.config.RootDirectory, archivePrefix, path)
}

func (f *s3Storage) Write(path string, data []byte) error {
	atomic.AddInt64(&f.apiCalls, 1)
	atomic.AddInt64(&f.writeSize, int64(len(data)))

	_, err := f.S3.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(f.config.Bucket),
		Key:    aws.String(f.fullPath(path)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (f *s3Storage) Info() {
	logrus.Infoln("S3 INFO: API calls:", atomic.LoadInt64(&f.apiCalls),
		"Written:", humanize.Bytes(uint64(atomic.LoadInt64(&f.writeSize))))
}
