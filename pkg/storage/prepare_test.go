package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phbpx/contact-intake/dynamodb"
	"github.com/phbpx/contact-intake/memory"
	"github.com/phbpx/contact-intake/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// provisioningAPI is a DynamoDB endpoint whose new tables stay CREATING for
// the first activateAfter describes.
type provisioningAPI struct {
	tables        map[string]types.TableStatus
	describes     map[string]int
	activateAfter int
	created       []string
}

func (p *provisioningAPI) PutItem(context.Context, *awsdynamodb.PutItemInput, ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	return &awsdynamodb.PutItemOutput{}, nil
}

func (p *provisioningAPI) DescribeTable(_ context.Context, in *awsdynamodb.DescribeTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error) {
	name := aws.ToString(in.TableName)
	status, ok := p.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	if status == types.TableStatusCreating {
		p.describes[name]++
		if p.describes[name] > p.activateAfter {
			status = types.TableStatusActive
			p.tables[name] = status
		}
	}
	return &awsdynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: status}}, nil
}

func (p *provisioningAPI) CreateTable(_ context.Context, in *awsdynamodb.CreateTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	p.created = append(p.created, name)
	p.tables[name] = types.TableStatusCreating
	return &awsdynamodb.CreateTableOutput{}, nil
}

func newProvisioningAPI(activateAfter int) *provisioningAPI {
	return &provisioningAPI{
		tables:        map[string]types.TableStatus{},
		describes:     map[string]int{},
		activateAfter: activateAfter,
	}
}

func TestPrepare_CreatesMissingTableBeforeChecking(t *testing.T) {
	api := newProvisioningAPI(2)
	b := dynamodb.New(api, "contacts")

	err := storage.Prepare(context.Background(), b, storage.StartupConfig{
		Migrate:        true,
		MigrateTimeout: time.Second,
		ReadyTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"contacts"}, api.created)
	assert.Equal(t, types.TableStatusActive, api.tables["contacts"])
}

func TestPrepare_WithoutMigrateMissingTableFails(t *testing.T) {
	api := newProvisioningAPI(0)
	b := dynamodb.New(api, "contacts")

	err := storage.Prepare(context.Background(), b, storage.StartupConfig{
		ReadyTimeout: 300 * time.Millisecond,
	})

	var notFound *types.ResourceNotFoundException
	assert.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "store unreachable")
	assert.Empty(t, api.created)
}

func TestPrepare_WaitsForRecovery(t *testing.T) {
	store := memory.New()
	store.SetDown(true)

	go func() {
		time.Sleep(150 * time.Millisecond)
		store.SetDown(false)
	}()

	err := storage.Prepare(context.Background(), store, storage.StartupConfig{
		Migrate:        true,
		MigrateTimeout: time.Second,
		ReadyTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
}

type failingMigrate struct {
	*memory.Store
	deadline bool
}

func (f *failingMigrate) Migrate(ctx context.Context) error {
	_, f.deadline = ctx.Deadline()
	return errors.New("schema locked")
}

func TestPrepare_MigrateFailure(t *testing.T) {
	b := &failingMigrate{Store: memory.New()}

	err := storage.Prepare(context.Background(), b, storage.StartupConfig{
		Migrate:        true,
		MigrateTimeout: time.Second,
		ReadyTimeout:   time.Second,
	})
	assert.EqualError(t, err, "updating schema: schema locked")
	assert.True(t, b.deadline, "migration runs under its own deadline")
}
