//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

const testSinkTopic = "test-measurements"

// Two files, two registered stations plus one unknown column.
var fixtureFiles = map[string]string{
	"china_sites_20230101.csv": "\ufeffdate,hour,type,1345A,1346A,9999Z\n" +
		"20230101,0,AQI,50,61,1\n" +
		"20230101,0,PM2.5,31,,2\n",
	"china_sites_20230102.csv": "date,hour,type,1345A,1346A,9999Z\n" +
		"20230102,23,AQI,70,—,3\n",
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("aq-etl-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range fixtureFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

type published struct {
	Key         string
	Headers     map[string]string
	Measurement domain.Measurement
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) published {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var m domain.Measurement
	require.NoError(t, json.Unmarshal(msg.Value, &m), "unmarshal sink message")
	return published{Key: string(msg.Key), Headers: headers, Measurement: m}
}

// TestPipelinePublishesMeasurements runs the full pipeline over CSV fixtures
// with a real broker as the sink and reads every joined row back.
func TestPipelinePublishesMeasurements(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
		BatchSize:      2,
	}
	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	ingestor := csvfile.NewIngestor(writeFixtures(t), "*.csv", 2, discardLogger())
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	p := pipeline.New(ingestor, discardLogger(), observability.NewMetricsForTesting(),
		pipeline.WithLocation(shanghai),
		pipeline.WithPublisher(publisher),
	)
	ds, err := p.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, ds.Stats.PublishError)
	require.Len(t, ds.Measurements, 6)
	assert.Equal(t, 3, ds.Stats.JoinDropped)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byKey := make(map[string]published, len(ds.Measurements))
	for len(byKey) < len(ds.Measurements) {
		msg := readPublished(ctx, t, consumer)
		byKey[msg.Key] = msg
	}

	for _, m := range ds.Measurements {
		key := m.StationID + "|" + m.PollutantType + "|" + m.Timestamp.UTC().Format(time.RFC3339)
		msg, ok := byKey[key]
		require.True(t, ok, "missing message %s", key)
		assert.Equal(t, m.PollutantType, msg.Headers["pollutant_type"])
		assert.Equal(t, m.StationID, msg.Headers["station_id"])
		assert.Equal(t, strconv.FormatBool(!m.Value.Valid), msg.Headers["missing"])
		assert.Equal(t, m.StationName, msg.Measurement.StationName)
		assert.Equal(t, m.Value, msg.Measurement.Value)
		assert.True(t, m.Timestamp.Equal(msg.Measurement.Timestamp))
	}

	// 2023-01-02 23:00 in Shanghai is 15:00 UTC.
	last, ok := byKey["1345A|AQI|2023-01-02T15:00:00Z"]
	require.True(t, ok)
	assert.InDelta(t, 70, last.Measurement.Value.Float64, 0)
	assert.Equal(t, "广雅中学", last.Measurement.StationName)

	missing, ok := byKey["1346A|AQI|2023-01-02T15:00:00Z"]
	require.True(t, ok)
	assert.Equal(t, "true", missing.Headers["missing"])
	assert.False(t, missing.Measurement.Value.Valid)
}
