// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Option customizes config loading. With no options the shell's own chain
// applies: AWS_PROFILE, the shared config files, env credentials, IMDS.
type Option = func(*config.LoadOptions) error

// WithProfile selects a shared config profile over the AWS_PROFILE chain.
func WithProfile(profile string) Option {
	return config.WithSharedConfigProfile(profile)
}

// WithRegion overrides the region from the env/profile/metadata chain.
func WithRegion(region string) Option {
	return config.WithRegion(region)
}

// LoadConfig resolves SDK v2 configuration through the default chain.
func LoadConfig(ctx context.Context, opts ...Option) (awsv2.Config, error) {
	return config.LoadDefaultConfig(ctx, opts...)
}

// NewS3 builds an S3 client on the resolved config.
func NewS3(cfg awsv2.Config, optFns ...func(*s3v2.Options)) *s3v2.Client {
	return s3v2.NewFromConfig(cfg, optFns...)
}
