// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every Lambda in the project needs some subset of: AWS config, S3,
// DynamoDB, SNS, async Lambda invocation, EventBridge, SSM parameter
// fetch, and startup logging. This package extracts the common init
// patterns so each Lambda's init() is a short composition of helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/store"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InLambda reports whether the process runs inside the Lambda runtime.
// Cold-start bootstrap is skipped outside it, so tests can construct
// their own dependencies.
func InLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client, presigner, and reads the bucket name from the
// given environment variable. Fatals if the env var is empty.
func InitS3(cfg aws.Config, bucketEnvVar string) S3Clients {
	client := s3.NewFromConfig(cfg)
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Fatal().Str("envVar", bucketEnvVar).Msg("Bucket environment variable is required")
	}
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitDynamo creates the media store from the given config and table
// name environment variable. Fatals if the env var is empty.
func InitDynamo(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitSNS creates an SNS client plus the topic ARN from the given
// environment variable. Fatals if the env var is empty.
func InitSNS(cfg aws.Config, topicEnvVar string) (*sns.Client, string) {
	topicARN := os.Getenv(topicEnvVar)
	if topicARN == "" {
		log.Fatal().Str("envVar", topicEnvVar).Msg("SNS topic environment variable is required")
	}
	return sns.NewFromConfig(cfg), topicARN
}

// InitLambdaInvoker creates a Lambda client for async fan-out invokes.
func InitLambdaInvoker(cfg aws.Config) *awslambda.Client {
	return awslambda.NewFromConfig(cfg)
}

// InitEventBridge creates an EventBridge client.
func InitEventBridge(cfg aws.Config) *eventbridge.Client {
	return eventbridge.NewFromConfig(cfg)
}

// LoadSSMParam resolves a configuration value: the env var wins if set,
// otherwise the value is fetched from SSM Parameter Store at paramPath.
// Fatals on SSM errors since the Lambda cannot run unconfigured.
func LoadSSMParam(ssmClient *ssm.Client, envVar, paramPath string, decrypt bool) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}

	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramPath,
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramPath).Msg("Failed to read parameter from SSM")
	}
	log.Debug().Str("param", paramPath).Dur("elapsed", time.Since(ssmStart)).Msg("Parameter loaded from SSM")
	return *result.Parameter.Value
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
