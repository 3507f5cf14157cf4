// Package cloudflare provides a client for interacting with the Cloudflare API.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"io"

	ctrl "bitwise74/cms-api/controller"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// R2Client talks to an R2 bucket through the S3 API and implements
// controller.ObjectStore
type R2Client struct {
	C        *s3.Client
	Bucket   *string
	uploader *manager.Uploader
}

func NewR2() (*R2Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("cloudflare.access_key_id"),
			viper.GetString("cloudflare.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("cloudflare.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", viper.GetString("cloudflare.account_id")))
		o.Region = "auto"
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &R2Client{
		C:      client,
		Bucket: bucket,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 5 << 20
		}),
	}, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func (r *R2Client) Head(ctx context.Context, key string) (*ctrl.Object, error) {
	out, err := r.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: r.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ctrl.ErrNotFound
		}
		return nil, err
	}

	obj := &ctrl.Object{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		UploadedBy:  out.Metadata["uploaded_by"],
	}
	if out.LastModified != nil {
		obj.Uploaded = out.LastModified.Unix()
	}

	return obj, nil
}

func (r *R2Client) Get(ctx context.Context, key string) (*ctrl.Object, error) {
	out, err := r.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: r.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ctrl.ErrNotFound
		}
		return nil, err
	}

	obj := &ctrl.Object{
		Key:         key,
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		UploadedBy:  out.Metadata["uploaded_by"],
	}
	if out.LastModified != nil {
		obj.Uploaded = out.LastModified.Unix()
	}

	return obj, nil
}

// Put streams the body without buffering it whole; the manager uploader
// handles multipart splitting for large payloads of unknown length
func (r *R2Client) Put(ctx context.Context, key string, body io.Reader, contentType, uploadedBy string) error {
	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      r.Bucket,
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded_by": uploadedBy,
		},
	})

	return err
}

func (r *R2Client) Delete(ctx context.Context, key string) error {
	_, err := r.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: r.Bucket,
		Key:    aws.String(key),
	})

	return err
}

func (r *R2Client) List(ctx context.Context, prefix, cursor string, limit int) (*ctrl.ObjectPage, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  r.Bucket,
		MaxKeys: aws.Int32(int32(limit)),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if cursor != "" {
		in.ContinuationToken = aws.String(cursor)
	}

	out, err := r.C.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, err
	}

	page := &ctrl.ObjectPage{
		Objects: make([]ctrl.Object, 0, len(out.Contents)),
	}

	for _, item := range out.Contents {
		obj := ctrl.Object{
			Key:  aws.ToString(item.Key),
			Size: aws.ToInt64(item.Size),
		}
		if item.LastModified != nil {
			obj.Uploaded = item.LastModified.Unix()
		}

		page.Objects = append(page.Objects, obj)
	}

	if aws.ToBool(out.IsTruncated) {
		page.Cursor = aws.ToString(out.NextContinuationToken)
	}

	return page, nil
}
