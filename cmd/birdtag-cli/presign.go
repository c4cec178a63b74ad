package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/nlawson/birdtag/internal/s3util"
)

var (
	presignBucket string
	presignKey    string
	presignExpiry time.Duration
	presignPut    bool
)

var presignCmd = &cobra.Command{
	Use:   "presign",
	Short: "Generate a presigned S3 URL for an object",
	RunE:  runPresign,
}

func init() {
	presignCmd.Flags().StringVarP(&presignBucket, "bucket", "b", "", "S3 bucket")
	presignCmd.Flags().StringVarP(&presignKey, "key", "k", "", "Object key")
	presignCmd.Flags().DurationVarP(&presignExpiry, "expiry", "e", 15*time.Minute, "URL expiry")
	presignCmd.Flags().BoolVar(&presignPut, "put", false, "Sign an upload (PUT) instead of a download (GET)")
	presignCmd.MarkFlagRequired("bucket")
	presignCmd.MarkFlagRequired("key")
}

func runPresign(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	presigner := s3.NewPresignClient(s3.NewFromConfig(cfg))

	var signedURL string
	if presignPut {
		result, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: &presignBucket,
			Key:    &presignKey,
		}, s3.WithPresignExpires(presignExpiry))
		if err != nil {
			return fmt.Errorf("presign PutObject: %w", err)
		}
		signedURL = result.URL
	} else {
		signedURL, err = s3util.PresignGet(ctx, presigner, presignBucket, presignKey, presignExpiry)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), signedURL)
	return nil
}
