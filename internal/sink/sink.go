// Package sink writes finished export documents to their destination.
package sink

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/afero"
	"pkt.systems/measurements/internal/settings"
)

// Writer stores a complete document in one step. A failed Write leaves no
// partial document behind.
type Writer interface {
	Write(ctx context.Context, data []byte) error
	// Target describes the destination for logs.
	Target() string
}

// Open selects a writer for target: s3://bucket/key goes to S3, anything else
// is a path on fsys.
func Open(ctx context.Context, target string, s settings.Settings, fsys afero.Fs) (Writer, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("output target is empty")
	}
	if strings.HasPrefix(target, "s3://") {
		bucket, key, err := parseS3URL(target)
		if err != nil {
			return nil, err
		}
		return NewS3(ctx, S3Config{
			Region:          s.S3Region,
			Bucket:          bucket,
			Key:             key,
			Endpoint:        s.S3Endpoint,
			PathStyle:       s.S3PathStyle,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
			SessionToken:    s.S3SessionToken,
		})
	}
	return NewFile(fsys, target), nil
}

func parseS3URL(target string) (bucket, key string, err error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 target %q: %w", target, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 target %q must have the form s3://bucket/key", target)
	}
	return u.Host, key, nil
}
