package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// User metadata keys read from media objects.
const (
	MetadataLink    = "link"
	MetadataCaption = "caption"
	MetadataAltText = "alt-text"

	largeSuffix = "-large"
)

// Config options for the S3 media resolver
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket holding media objects
	Prefix          string // Key prefix of media objects (default: media)
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PublicBaseURL   string // Base URL media objects are served from
}

// HeadObjectAPI is the part of the S3 client the resolver needs
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Resolver is an S3-backed implementation of featuredsync.MediaResolver.
// Media id N is the object <prefix>/N; an optional <prefix>/N-large object
// is its large rendition.
type Resolver struct {
	client  HeadObjectAPI
	bucket  string
	prefix  string
	baseURL string
}

var _ featuredsync.MediaResolver = (*Resolver)(nil)

// New creates a resolver with its own S3 client
func New(config Config) (*Resolver, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config)
}

// NewWithClient creates a resolver on top of an existing client
func NewWithClient(client HeadObjectAPI, config Config) (*Resolver, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	prefix := strings.Trim(config.Prefix, "/")
	if prefix == "" {
		prefix = "media"
	}
	baseURL := config.PublicBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(config)
	}

	return &Resolver{
		client:  client,
		bucket:  config.Bucket,
		prefix:  prefix,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func defaultBaseURL(config Config) string {
	if config.Endpoint != "" {
		return strings.TrimRight(config.Endpoint, "/") + "/" + config.Bucket
	}
	region := config.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, region)
}

// ObjectKey returns the object key of a media id
func (r *Resolver) ObjectKey(id featuredsync.MediaID) string {
	return r.prefix + "/" + strconv.FormatInt(int64(id), 10)
}

// ResolveMedia reads media metadata from the object's user metadata
func (r *Resolver) ResolveMedia(ctx context.Context, id featuredsync.MediaID) (*featuredsync.MediaObject, error) {
	if id <= 0 {
		return nil, featuredsync.ErrMediaNotFound
	}

	key := r.ObjectKey(id)
	result, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, featuredsync.ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to get media metadata: %w", err)
	}

	media := &featuredsync.MediaObject{
		ID:      id,
		Link:    metadata(result.Metadata, MetadataLink),
		Caption: metadata(result.Metadata, MetadataCaption),
		AltText: metadata(result.Metadata, MetadataAltText),
		URL:     r.baseURL + "/" + key,
	}

	largeKey := key + largeSuffix
	_, err = r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(largeKey),
	})
	switch {
	case err == nil:
		media.Sizes.Large = &featuredsync.MediaSize{URL: r.baseURL + "/" + largeKey}
	case isNotFound(err):
	default:
		return nil, fmt.Errorf("failed to get large rendition metadata: %w", err)
	}

	return media, nil
}

// metadata looks a key up case-insensitively; S3-compatible services differ
// in how they return user metadata keys.
func metadata(values map[string]string, key string) string {
	if v, ok := values[key]; ok {
		return v
	}
	for k, v := range values {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}
