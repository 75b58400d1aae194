// Package dynamodb stores contacts as items of a DynamoDB table keyed by id.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	intake "github.com/phbpx/contact-intake"
)

// Config selects the table and, for local development, an endpoint such as
// DynamoDB Local. With Endpoint set, static dummy credentials are used.
type Config struct {
	Table    string
	Region   string
	Endpoint string
}

// API is the subset of the DynamoDB client the store needs.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store writes contacts with PutItem.
type Store struct {
	db    API
	table string
}

// Open builds a client from the default AWS configuration chain.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, errors.New("dynamodb table is required")
	}

	var db *dynamodb.Client
	if cfg.Endpoint != "" {
		region := cfg.Region
		if region == "" {
			region = "dummy"
		}
		awsCfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		db = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	} else {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		db = dynamodb.NewFromConfig(awsCfg)
	}

	return New(db, cfg.Table), nil
}

// New wraps an existing client.
func New(db API, table string) *Store {
	return &Store{
		db:    db,
		table: table,
	}
}

// Save refuses to overwrite an existing id.
func (s *Store) Save(ctx context.Context, c intake.Contact) error {
	item := map[string]types.AttributeValue{
		"id":              &types.AttributeValueMemberS{Value: c.ID},
		"name":            &types.AttributeValueMemberS{Value: c.Name},
		"email":           &types.AttributeValueMemberS{Value: c.Email},
		"inquiry_type":    &types.AttributeValueMemberS{Value: c.InquiryType},
		"message":         &types.AttributeValueMemberS{Value: c.Message},
		"agreed_to_terms": &types.AttributeValueMemberBOOL{Value: c.AgreedToTerms},
		"created_at":      &types.AttributeValueMemberS{Value: c.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"created_at_unix": &types.AttributeValueMemberN{Value: strconv.FormatInt(c.CreatedAt.UnixMilli(), 10)},
	}
	// Optional fields are only written when present.
	if c.Organization != "" {
		item["organization"] = &types.AttributeValueMemberS{Value: c.Organization}
	}
	if c.Role != "" {
		item["role"] = &types.AttributeValueMemberS{Value: c.Role}
	}

	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("contact %s already exists", c.ID)
		}
		return err
	}
	return nil
}

func (s *Store) StatusCheck(ctx context.Context) error {
	out, err := s.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return err
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return fmt.Errorf("table %s is %s", s.table, out.Table.TableStatus)
	}
	return nil
}

// Migrate creates the table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describing table %s: %w", s.table, err)
	}

	_, err = s.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connection of its own.
func (s *Store) Close() error { return nil }
