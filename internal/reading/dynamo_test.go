package reading

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
)

type fakeQuery struct {
	mu     sync.Mutex
	inputs []*dynamodb.QueryInput
	pages  []*dynamodb.QueryOutput
	err    error
}

func (f *fakeQuery) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type fakeClients struct {
	client  *fakeQuery
	regions []string
	err     error
}

func (f *fakeClients) Client(_ context.Context, region string) (dynamodb.QueryAPIClient, error) {
	f.regions = append(f.regions, region)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func item(t *testing.T, v map[string]any) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return av
}

func testSettings() *conf.ReadingSettings {
	return &conf.ReadingSettings{
		Alerts:      conf.TableSettings{Region: "us-east-2", Table: conf.DefaultAlertsTable, Index: conf.DefaultAlertsIndex},
		History:     conf.TableSettings{Region: "us-west-1", Table: conf.DefaultHistoryTable},
		RecentLimit: 100,
	}
}

func newTestStore(q *fakeQuery) (*DynamoStore, *fakeClients) {
	clients := &fakeClients{client: q}
	return NewDynamoStore(clients, testSettings(), nil), clients
}

func TestLatestQueriesAlertIndexNewestFirst(t *testing.T) {
	q := &fakeQuery{pages: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{item(t, map[string]any{
			"cam_name": "Axis-AlabamaHills1", "timestamp": 1700000000, "fire_score": 0.83,
			"label": "fire", "no_fire_score": 0.17, "id": "r-1",
		})},
	}}}
	store, clients := newTestStore(q)

	r, err := store.Latest(t.Context(), "Axis-AlabamaHills1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, LabelFire, r.Label)
	assert.Equal(t, int64(1700000000), r.Timestamp)
	assert.Equal(t, 83, r.ConfidencePercent())
	require.NotNil(t, r.NoFireScore)
	assert.InDelta(t, 0.17, *r.NoFireScore, 1e-9)

	require.Len(t, q.inputs, 1)
	in := q.inputs[0]
	assert.Equal(t, conf.DefaultAlertsTable, aws.ToString(in.TableName))
	assert.Equal(t, conf.DefaultAlertsIndex, aws.ToString(in.IndexName))
	assert.False(t, aws.ToBool(in.ScanIndexForward))
	assert.Equal(t, int32(1), aws.ToInt32(in.Limit))
	assert.Equal(t, "cam_name = :cam", aws.ToString(in.KeyConditionExpression))
	assert.Equal(t, []string{"us-east-2"}, clients.regions)
}

func TestLatestNoReadings(t *testing.T) {
	store, _ := newTestStore(&fakeQuery{})
	r, err := store.Latest(t.Context(), "cam-empty")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestLatestInvalidInput(t *testing.T) {
	store, _ := newTestStore(&fakeQuery{})
	_, err := store.Latest(t.Context(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
}

func TestLatestStoreUnavailable(t *testing.T) {
	store, _ := newTestStore(&fakeQuery{err: fmt.Errorf("dial tcp: connection refused")})
	_, err := store.Latest(t.Context(), "cam-1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatus(err))
}

func TestLatestCredentialsMissing(t *testing.T) {
	store, clients := newTestStore(&fakeQuery{})
	clients.err = errors.New(ErrConfigMissing).Component("test").Build()
	_, err := store.Latest(t.Context(), "cam-1")
	require.ErrorIs(t, err, ErrConfigMissing)
}

func TestDecodeRejectsMalformedItems(t *testing.T) {
	tests := []struct {
		name string
		item map[string]any
	}{
		{"missing label", map[string]any{"cam_name": "c", "timestamp": 1, "fire_score": 0.5}},
		{"unknown label", map[string]any{"cam_name": "c", "timestamp": 1, "fire_score": 0.5, "label": "smoke"}},
		{"score above one", map[string]any{"cam_name": "c", "timestamp": 1, "fire_score": 1.5, "label": "fire"}},
		{"score wrong type", map[string]any{"cam_name": "c", "timestamp": 1, "fire_score": "high", "label": "fire"}},
		{"missing timestamp", map[string]any{"cam_name": "c", "fire_score": 0.1, "label": "nofire"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuery{pages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item(t, tt.item)}}}}
			store, _ := newTestStore(q)
			_, err := store.Latest(t.Context(), "c")
			require.ErrorIs(t, err, ErrDataIntegrity)
			assert.True(t, errors.IsCategory(err, errors.CategoryDataIntegrity))
		})
	}
}

func TestDecodeNormalizesNoFireLabel(t *testing.T) {
	q := &fakeQuery{pages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		item(t, map[string]any{"cam_name": "c", "timestamp": 5, "fire_score": 0.1, "label": "no_fire"}),
	}}}}
	store, _ := newTestStore(q)
	r, err := store.Latest(t.Context(), "c")
	require.NoError(t, err)
	assert.Equal(t, LabelNoFire, r.Label)
	assert.False(t, r.IsFire())
}

func TestSincePaginatesWithWindow(t *testing.T) {
	now := time.Unix(1700000600, 0)
	q := &fakeQuery{pages: []*dynamodb.QueryOutput{
		{
			Items: []map[string]types.AttributeValue{
				item(t, map[string]any{"cam_name": "c", "timestamp": 1700000100, "fire_score": 0.2, "label": "nofire"}),
			},
			LastEvaluatedKey: item(t, map[string]any{"cam_name": "c", "timestamp": 1700000100}),
		},
		{
			Items: []map[string]types.AttributeValue{
				item(t, map[string]any{"cam_name": "c", "timestamp": 1700000500, "fire_score": 0.9, "label": "fire"}),
			},
		},
	}}
	store, _ := newTestStore(q)
	store.now = func() time.Time { return now }

	got, err := store.Since(t.Context(), "c", 10*time.Minute, Chronological)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1700000100), got[0].Timestamp)
	assert.Equal(t, int64(1700000500), got[1].Timestamp)

	require.Len(t, q.inputs, 2)
	first := q.inputs[0]
	assert.True(t, aws.ToBool(first.ScanIndexForward))
	assert.Equal(t, "timestamp", first.ExpressionAttributeNames["#ts"])
	since, ok := first.ExpressionAttributeValues[":since"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1700000000", since.Value)
	assert.NotEmpty(t, q.inputs[1].ExclusiveStartKey)
}

func TestSinceRejectsNonPositiveWindow(t *testing.T) {
	store, _ := newTestStore(&fakeQuery{})
	_, err := store.Since(t.Context(), "c", 0, NewestFirst)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecentUsesHistoryTable(t *testing.T) {
	q := &fakeQuery{}
	store, clients := newTestStore(q)

	_, err := store.Recent(t.Context(), "cam-9", 0)
	require.NoError(t, err)

	require.Len(t, q.inputs, 1)
	in := q.inputs[0]
	assert.Equal(t, conf.DefaultHistoryTable, aws.ToString(in.TableName))
	assert.Nil(t, in.IndexName, "history table is queried on its primary key")
	assert.Equal(t, int32(100), aws.ToInt32(in.Limit))
	assert.False(t, aws.ToBool(in.ScanIndexForward))
	assert.Equal(t, []string{"us-west-1"}, clients.regions)
}
