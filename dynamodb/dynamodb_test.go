package dynamodb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	intake "github.com/phbpx/contact-intake"
	store "github.com/phbpx/contact-intake/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	puts    []*dynamodb.PutItemInput
	putErr  error
	tables  map[string]types.TableStatus
	created []string
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	status, ok := f.tables[aws.ToString(in.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: status}}, nil
}

func (f *fakeAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	f.created = append(f.created, name)
	f.tables[name] = types.TableStatusCreating
	return &dynamodb.CreateTableOutput{}, nil
}

func TestStore_Save(t *testing.T) {
	api := &fakeAPI{tables: map[string]types.TableStatus{}}
	s := store.New(api, "contacts")

	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	err := s.Save(context.Background(), intake.Contact{
		ID:            "id-1",
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		Role:          "Researcher",
		InquiryType:   "research-partner",
		Message:       "Let's talk",
		AgreedToTerms: true,
		CreatedAt:     created,
	})
	require.NoError(t, err)
	require.Len(t, api.puts, 1)

	in := api.puts[0]
	assert.Equal(t, "contacts", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(id)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "id-1"}, in.Item["id"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, in.Item["agreed_to_terms"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2025-05-01T12:00:00Z"}, in.Item["created_at"])
	assert.Contains(t, in.Item, "role")
	assert.NotContains(t, in.Item, "organization")
}

func TestStore_SaveConflict(t *testing.T) {
	api := &fakeAPI{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	s := store.New(api, "contacts")

	err := s.Save(context.Background(), intake.Contact{ID: "id-1"})
	assert.EqualError(t, err, "contact id-1 already exists")
}

func TestStore_SaveError(t *testing.T) {
	cause := errors.New("throttled")
	s := store.New(&fakeAPI{putErr: cause}, "contacts")

	assert.ErrorIs(t, s.Save(context.Background(), intake.Contact{ID: "id-1"}), cause)
}

func TestStore_MigrateAndStatus(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{tables: map[string]types.TableStatus{}}
	s := store.New(api, "contacts")

	assert.Error(t, s.StatusCheck(ctx))

	require.NoError(t, s.Migrate(ctx))
	assert.Equal(t, []string{"contacts"}, api.created)
	assert.Error(t, s.StatusCheck(ctx), "table still creating")

	api.tables["contacts"] = types.TableStatusActive
	require.NoError(t, s.StatusCheck(ctx))

	require.NoError(t, s.Migrate(ctx))
	assert.Len(t, api.created, 1, "existing table is left alone")
}
