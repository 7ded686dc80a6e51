// Package mirror implements the store's optional, best-effort S3 durability
// mirror: after a successful store commit, the store's SQLite file is
// copied to an S3-compatible bucket. This is strictly additive durability,
// never on the critical path of a script's update — adapted from the
// S3 store factory construction in the teacher's lode/client_s3.go.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/henry40408/lmb/internal/lmblog"
)

// Config configures the S3 mirror. Mirroring is off by default.
type Config struct {
	Enabled      bool
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	Source       string // logical source name, used in the Hive-style key prefix
}

// Mirror copies a store file to S3 after each commit.
type Mirror struct {
	cfg    Config
	client *s3.Client
	log    *lmblog.Logger
}

// New constructs a Mirror from cfg. If cfg.Enabled is false, New still
// succeeds but the returned Mirror's Copy is a no-op, so callers can wire
// it unconditionally and let configuration gate behavior.
func New(ctx context.Context, cfg Config, log *lmblog.Logger) (*Mirror, error) {
	if !cfg.Enabled {
		return &Mirror{cfg: cfg, log: log}, nil
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror: bucket is required when enabled")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Mirror{cfg: cfg, client: client, log: log}, nil
}

// AfterCommit matches store.AfterCommit's signature, so a Mirror can be
// wired directly via Store.SetAfterCommit. Failures are logged, never
// surfaced to the caller — mirroring never sits on the write's critical
// path.
func (m *Mirror) AfterCommit(ctx context.Context, path string) {
	if !m.cfg.Enabled {
		return
	}
	if err := m.Copy(ctx, path); err != nil {
		if m.log != nil {
			m.log.Sugar().Warnw("store mirror copy failed", "path", path, "error", err)
		}
	}
}

// Copy uploads the file at path to the configured bucket under a
// source/day/ Hive-style key prefix.
func (m *Mirror) Copy(ctx context.Context, path string) error {
	if !m.cfg.Enabled {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("mirror: read store file: %w", err)
	}

	key := m.objectKey(path)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytesReader(data),
	})
	if err != nil {
		return fmt.Errorf("mirror: put object %s: %w", key, err)
	}
	return nil
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

func (m *Mirror) objectKey(path string) string {
	source := m.cfg.Source
	if source == "" {
		source = "default"
	}
	day := time.Now().UTC().Format("2006-01-02")
	base := filepath.Base(path)
	if m.cfg.Prefix != "" {
		return fmt.Sprintf("%s/%s/%s/%s", m.cfg.Prefix, source, day, base)
	}
	return fmt.Sprintf("%s/%s/%s", source, day, base)
}
