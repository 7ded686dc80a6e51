package fsbinding

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmberr"
)

// S3Client backs @lmb/fs's supplemental s3_get/s3_put helpers, gated by an
// explicit allow-list so a script can only reach buckets the host
// operator has named — grounded directly on the teacher's
// lode/client_s3.go S3 client construction (config.LoadDefaultConfig +
// s3.NewFromConfig with optional custom endpoint/path-style), generalized
// from Lode's dataset-writer role to single-object get/put.
type S3Client struct {
	client  *s3.Client
	allowed map[string]bool
}

// S3Config configures the object-storage helpers.
type S3Config struct {
	Region           string
	Endpoint         string
	UsePathStyle     bool
	AllowedS3Buckets []string
}

// NewS3Client constructs an S3Client from cfg. A nil/empty
// AllowedS3Buckets means every s3_get/s3_put call is rejected.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("fsbinding: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	allowed := make(map[string]bool, len(cfg.AllowedS3Buckets))
	for _, b := range cfg.AllowedS3Buckets {
		allowed[b] = true
	}
	return &S3Client{client: client, allowed: allowed}, nil
}

func (s *S3Client) checkAllowed(bucket string) error {
	if s == nil || !s.allowed[bucket] {
		return lmberr.New(lmberr.KindFSIO, "s3 bucket not allow-listed: "+bucket)
	}
	return nil
}

// luaGet implements s3_get(bucket, key) → bytes.
func (s *S3Client) luaGet(L *lua.LState) int {
	bucket := L.CheckString(1)
	key := L.CheckString(2)
	if err := s.checkAllowed(bucket); err != nil {
		raiseLmbErr(L, lmberr.AsError(err))
		return 0
	}

	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "s3_get "+bucket+"/"+key, err))
		return 0
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "s3_get read "+bucket+"/"+key, err))
		return 0
	}
	L.Push(lua.LString(string(data)))
	return 1
}

// luaPut implements s3_put(bucket, key, data).
func (s *S3Client) luaPut(L *lua.LState) int {
	bucket := L.CheckString(1)
	key := L.CheckString(2)
	data := L.CheckString(3)
	if err := s.checkAllowed(bucket); err != nil {
		raiseLmbErr(L, lmberr.AsError(err))
		return 0
	}

	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(data)),
	})
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "s3_put "+bucket+"/"+key, err))
		return 0
	}
	return 0
}
