package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"standup-bot/internal/domain"
)

// ErrDuplicate is returned when a put lands on an already-existing
// (user_id, ts) key.
var ErrDuplicate = errors.New("repository: submission already exists")

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Writer is the store surface consumed by the command and interaction paths.
type Writer interface {
	PutSubmission(ctx context.Context, sub domain.Submission) error
	LatestForUser(ctx context.Context, userID string, n int) ([]domain.Submission, error)
}

// RangeReader is the store surface consumed by the digest run.
type RangeReader interface {
	QueryRange(ctx context.Context, startTS, endTS string) ([]domain.Submission, error)
}

// Store wraps the standup submissions table.
// Schema: PK user_id (S), SK ts (S, RFC3339Nano UTC + uniqueness suffix).
type Store struct {
	api       dynamodbAPI
	tableName string
}

// New creates a Store for the given table.
func New(api dynamodbAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName}, nil
}

// PutSubmission writes one submission. The condition expression makes the
// write strictly append-only: a key collision is reported as ErrDuplicate
// rather than silently overwriting.
func (s *Store) PutSubmission(ctx context.Context, sub domain.Submission) error {
	if sub.UserID == "" || sub.TS == "" {
		return errors.New("repository: PutSubmission: user_id and ts are required")
	}

	item, err := attributevalue.MarshalMap(sub)
	if err != nil {
		return fmt.Errorf("repository: PutSubmission marshal: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id) AND attribute_not_exists(ts)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: PutSubmission %s/%s: %w", sub.UserID, sub.TS, ErrDuplicate)
		}
		return fmt.Errorf("repository: PutSubmission: %w", err)
	}
	return nil
}

// LatestForUser returns up to n submissions for one user, newest first.
func (s *Store) LatestForUser(ctx context.Context, userID string, n int) ([]domain.Submission, error) {
	if n <= 0 {
		return nil, nil
	}

	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(n)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: LatestForUser query: %w", err)
	}

	subs := make([]domain.Submission, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &subs); err != nil {
		return nil, fmt.Errorf("repository: LatestForUser unmarshal: %w", err)
	}
	return subs, nil
}

// QueryRange returns every submission with startTS <= ts < endTS, across
// all users, ordered by ts. The primary key is partitioned by user, so this
// is a paginated scan with a ts filter; fine for the volumes a standup
// channel produces. Higher volume wants a ts-keyed GSI instead.
func (s *Store) QueryRange(ctx context.Context, startTS, endTS string) ([]domain.Submission, error) {
	if startTS == "" || endTS == "" {
		return nil, errors.New("repository: QueryRange: start and end are required")
	}

	in := &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("ts >= :start AND ts < :end"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":start": &types.AttributeValueMemberS{Value: startTS},
			":end":   &types.AttributeValueMemberS{Value: endTS},
		},
	}

	var subs []domain.Submission
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryRange scan: %w", err)
		}
		page := make([]domain.Submission, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("repository: QueryRange unmarshal: %w", err)
		}
		subs = append(subs, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	// Scan order is undefined; the digest wants chronological.
	sort.Slice(subs, func(i, j int) bool { return subs[i].TS < subs[j].TS })
	return subs, nil
}
