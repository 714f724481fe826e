// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/go-preheat/preheat/internal/async"
	"github.com/go-preheat/preheat/internal/aws"
)

// s3API is the slice of the S3 client the origin needs. Tests substitute it.
type s3API interface {
	GetObject(ctx context.Context, input *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
}

// S3Option customizes an S3Origin.
type S3Option func(*S3Origin)

// WithS3Profile sets the shared config profile. Defaults to AWS_PROFILE/env
// chain.
func WithS3Profile(profile string) S3Option {
	return func(o *S3Origin) { o.profile = profile }
}

// WithS3Region sets the region override. Defaults to env/profile/metadata
// chain.
func WithS3Region(region string) S3Option {
	return func(o *S3Origin) { o.region = region }
}

// WithS3Client injects a prebuilt client, used by tests.
func WithS3Client(client s3API) S3Option {
	return func(o *S3Origin) {
		o.clientFn = func() (s3API, error) { return client, nil }
	}
}

// S3Origin fetches payloads addressed as s3://bucket/key. The client is
// built on first use and reused; by default it inherits the shell's AWS
// setup (AWS_PROFILE, shared config, env, IMDS).
type S3Origin struct {
	profile string
	region  string

	clientFn func() (s3API, error)
}

// NewS3Origin builds an S3Origin.
func NewS3Origin(opts ...S3Option) *S3Origin {
	o := &S3Origin{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clientFn == nil {
		o.clientFn = async.Memoize(o.buildClient)
	}
	return o
}

func (o *S3Origin) Schemes() []string {
	return []string{"s3"}
}

func (o *S3Origin) String() string {
	return "origin-s3"
}

// buildClient loads AWS config and constructs the S3 client. Config loading
// happens once per process, not per fetch, so it runs on a background
// context rather than any single request's.
func (o *S3Origin) buildClient() (s3API, error) {
	var loadOpts []aws.Option
	if o.profile != "" {
		loadOpts = append(loadOpts, aws.WithProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, aws.WithRegion(o.region))
	}

	cfg, err := aws.LoadConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return aws.NewS3(cfg), nil
}

// Fetch GETs the object at s3://bucket/key. Missing buckets and keys come
// back as a *StatusError 404 so the caller treats them like any other
// permanent miss.
func (o *S3Origin) Fetch(ctx context.Context, rawURL string, _ http.Header) ([]byte, Meta, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, Meta{}, err
	}

	client, err := o.clientFn()
	if err != nil {
		return nil, Meta{}, err
	}

	obj, err := client.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, Meta{}, &StatusError{Code: http.StatusNotFound, URL: rawURL}
		}
		return nil, Meta{}, fmt.Errorf("failed to get S3 object: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	meta := Meta{
		StatusCode: http.StatusOK,
		Source:     "s3",
	}
	if obj.ContentType != nil {
		meta.ContentType = *obj.ContentType
	}
	if obj.ETag != nil {
		meta.ETag = strings.Trim(*obj.ETag, `"`)
	}
	if obj.LastModified != nil {
		meta.LastModified = *obj.LastModified
	}

	log.Debugf("fetched s3://%s/%s (%d bytes)", bucket, key, len(data))

	return data, meta, nil
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("not an s3 url: %s", rawURL)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("s3 url %q has no bucket", rawURL)
	}

	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url %q has no key", rawURL)
	}

	return u.Host, key, nil
}
