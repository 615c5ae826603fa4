package paramstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM surface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies it.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter resolves a named secret. Consumers (the signature verifier, the
// Slack client) depend on this interface rather than the concrete Client so
// they stay testable without AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads decrypted parameters from SSM Parameter Store.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// EnvGetter is a Getter backed by environment variables, used by the local
// dev server where no Parameter Store exists. A parameter name like
// "/standup/slack/bot-token" maps to SLACK_BOT_TOKEN via its last two path
// segments.
type EnvGetter struct{}

func (EnvGetter) GetParameter(_ context.Context, name string) (string, error) {
	segs := strings.Split(strings.Trim(name, "/"), "/")
	if len(segs) < 2 {
		return "", fmt.Errorf("paramstore: env getter: unexpected parameter name %q", name)
	}
	key := strings.ToUpper(strings.ReplaceAll(strings.Join(segs[len(segs)-2:], "_"), "-", "_"))
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("paramstore: env getter: %s is not set", key)
	}
	return v, nil
}
