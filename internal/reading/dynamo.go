package reading

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
)

// record mirrors a stored item. Pointers tell missing attributes apart from
// zero values.
type record struct {
	CamName     *string  `dynamodbav:"cam_name"`
	Timestamp   *float64 `dynamodbav:"timestamp"`
	FireScore   *float64 `dynamodbav:"fire_score"`
	Label       *string  `dynamodbav:"label"`
	NoFireScore *float64 `dynamodbav:"no_fire_score"`
	ID          string   `dynamodbav:"id"`
}

func (rec *record) toReading() (Reading, error) {
	var r Reading
	if rec.CamName != nil {
		r.CameraID = *rec.CamName
	}
	if rec.CamName == nil || rec.Timestamp == nil || rec.FireScore == nil || rec.Label == nil {
		return r, integrityError("required attribute missing", &r)
	}
	r.Timestamp = int64(*rec.Timestamp)
	r.FireScore = *rec.FireScore
	r.NoFireScore = rec.NoFireScore
	r.ID = rec.ID
	label, ok := ParseLabel(*rec.Label)
	if !ok {
		r.Label = Label(*rec.Label)
	} else {
		r.Label = label
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]Reading, error) {
	out := make([]Reading, 0, len(items))
	for _, item := range items {
		var rec record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, errors.New(errors.Join(ErrDataIntegrity, err)).
				Component(componentReading).
				Build()
		}
		r, err := rec.toReading()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DynamoStore reads from two tables: the alerts table, queried through a
// (cam_name, timestamp) index by the scanner and dashboard, and the history
// table behind the reading fetch endpoint.
type DynamoStore struct {
	clients     ClientSource
	alerts      conf.TableSettings
	history     conf.TableSettings
	recentLimit int
	recorder    metrics.Recorder
	log         logger.Logger
	now         func() time.Time
}

// NewDynamoStore builds a store from settings.
func NewDynamoStore(clients ClientSource, settings *conf.ReadingSettings, recorder metrics.Recorder) *DynamoStore {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	history := settings.History
	if history.Table == "" {
		history = settings.Alerts
	}
	limit := settings.RecentLimit
	if limit <= 0 {
		limit = conf.DefaultRecentLimit
	}
	return &DynamoStore{
		clients:     clients,
		alerts:      settings.Alerts,
		history:     history,
		recentLimit: limit,
		recorder:    recorder,
		log:         logger.Global().Module(componentReading),
		now:         time.Now,
	}
}

// Latest returns the newest reading of cameraID from the alerts table.
func (s *DynamoStore) Latest(ctx context.Context, cameraID string) (*Reading, error) {
	if err := checkCamera(cameraID); err != nil {
		return nil, err
	}
	input := s.keyQuery(s.alerts, cameraID)
	input.ScanIndexForward = aws.Bool(false)
	input.Limit = aws.Int32(1)

	var readings []Reading
	err := s.observe(metrics.OpLatest, cameraID, func() error {
		client, err := s.clients.Client(ctx, s.alerts.Region)
		if err != nil {
			return err
		}
		out, err := client.Query(ctx, input)
		if err != nil {
			return unavailable(metrics.OpLatest, cameraID, err)
		}
		readings, err = decodeItems(out.Items)
		return err
	})
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

// Since returns the readings of cameraID within window, following pagination.
func (s *DynamoStore) Since(ctx context.Context, cameraID string, window time.Duration, order Order) ([]Reading, error) {
	if err := checkCamera(cameraID); err != nil {
		return nil, err
	}
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	since := s.now().Add(-window).Unix()

	input := s.keyQuery(s.alerts, cameraID)
	input.KeyConditionExpression = aws.String("cam_name = :cam AND #ts >= :since")
	input.ExpressionAttributeNames = map[string]string{"#ts": "timestamp"}
	input.ExpressionAttributeValues[":since"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(since, 10)}
	input.ScanIndexForward = aws.Bool(order == Chronological)

	var readings []Reading
	err := s.observe(metrics.OpSince, cameraID, func() error {
		client, err := s.clients.Client(ctx, s.alerts.Region)
		if err != nil {
			return err
		}
		pages := dynamodb.NewQueryPaginator(client, input)
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				return unavailable(metrics.OpSince, cameraID, err)
			}
			batch, err := decodeItems(page.Items)
			if err != nil {
				return err
			}
			readings = append(readings, batch...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}

// Recent returns up to limit readings of cameraID from the history table,
// newest first.
func (s *DynamoStore) Recent(ctx context.Context, cameraID string, limit int) ([]Reading, error) {
	if err := checkCamera(cameraID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.recentLimit
	}
	input := s.keyQuery(s.history, cameraID)
	input.ScanIndexForward = aws.Bool(false)
	input.Limit = aws.Int32(int32(min(limit, 1<<20)))

	var readings []Reading
	err := s.observe(metrics.OpRecent, cameraID, func() error {
		client, err := s.clients.Client(ctx, s.history.Region)
		if err != nil {
			return err
		}
		out, err := client.Query(ctx, input)
		if err != nil {
			return unavailable(metrics.OpRecent, cameraID, err)
		}
		readings, err = decodeItems(out.Items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (s *DynamoStore) keyQuery(table conf.TableSettings, cameraID string) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(table.Table),
		KeyConditionExpression: aws.String("cam_name = :cam"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cam": &types.AttributeValueMemberS{Value: cameraID},
		},
	}
	if table.Index != "" {
		input.IndexName = aws.String(table.Index)
	}
	return input
}

func (s *DynamoStore) observe(op, cameraID string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.recorder.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		s.recorder.RecordOperation(op, metrics.StatusError)
		s.recorder.RecordError(op, string(errors.CategoryOf(err)))
		s.log.Warn("reading query failed",
			logger.String("operation", op),
			logger.String("camera_id", cameraID),
			logger.Error(err))
		return err
	}
	s.recorder.RecordOperation(op, metrics.StatusSuccess)
	return nil
}
