package main

import (
	"context"
	"log/slog"
	"os"

	// The provided.al2 runtime ships no zoneinfo; the digest window needs it.
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"standup-bot/handler"
	"standup-bot/internal/config"
	"standup-bot/internal/integrations/paramstore"
	"standup-bot/internal/integrations/slackapi"
	"standup-bot/internal/repository"
	"standup-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	dynamoClient, err := repository.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("failed to create DynamoDB client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(dynamoClient, cfg.TableName)
	if err != nil {
		slog.Error("failed to create submission store", "err", err)
		os.Exit(1)
	}

	slackClient, err := slackapi.NewClient(ssmClient, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create Slack client", "err", err)
		os.Exit(1)
	}

	digest, err := usecase.NewDigest(store, slackClient, cfg.SummaryChannelID, cfg.Location())
	if err != nil {
		slog.Error("failed to create digest aggregator", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewDigestHandler(digest)
	if err != nil {
		slog.Error("failed to create digest handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
