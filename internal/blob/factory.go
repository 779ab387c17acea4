package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Open selects an archive backend using environment variables.
//
//	FLEXILIMS_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	FLEXILIMS_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archives)
//	FLEXILIMS_ARCHIVE_S3_BUCKET: bucket name, required when driver=s3
//	FLEXILIMS_ARCHIVE_S3_REGION: region (default us-east-1)
//	FLEXILIMS_ARCHIVE_S3_ENDPOINT: custom endpoint, optional (MinIO)
//	FLEXILIMS_ARCHIVE_S3_PATH_STYLE: true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN: optional
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FLEXILIMS_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("FLEXILIMS_ARCHIVE_FS_ROOT"))
	case DriverS3:
		bucket := os.Getenv("FLEXILIMS_ARCHIVE_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("FLEXILIMS_ARCHIVE_S3_BUCKET required for s3 driver")
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Region:    os.Getenv("FLEXILIMS_ARCHIVE_S3_REGION"),
			Endpoint:  os.Getenv("FLEXILIMS_ARCHIVE_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("FLEXILIMS_ARCHIVE_S3_PATH_STYLE"), "true"),
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
