package main

import (
	"context"
	"log/slog"
	"os"

	// The provided.al2 runtime ships no zoneinfo; config validation needs it.
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"standup-bot/handler"
	"standup-bot/internal/config"
	"standup-bot/internal/integrations/paramstore"
	"standup-bot/internal/integrations/slackapi"
	"standup-bot/internal/repository"
	"standup-bot/internal/signature"
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

	verifier, err := signature.New(
		storeSecret(ssmClient, cfg.SigningSecretParam()),
		signature.WithTolerance(cfg.SkewTolerance),
	)
	if err != nil {
		slog.Error("failed to create signature verifier", "err", err)
		os.Exit(1)
	}

	standup, err := usecase.NewStandup(store, slackClient, cfg.MaxTextLength)
	if err != nil {
		slog.Error("failed to create standup dispatcher", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(verifier, standup)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// storeSecret adapts the parameter store to the verifier's lazy secret
// resolution.
func storeSecret(ps paramstore.Getter, name string) signature.SecretGetter {
	return func() (string, error) {
		return ps.GetParameter(context.Background(), name)
	}
}
