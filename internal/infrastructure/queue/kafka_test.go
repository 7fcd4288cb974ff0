package queue_test

import (
	"testing"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/queue"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestReportMessageRoundTrip(t *testing.T) {
	report := &dto.ReportDTO{
		RunID:     "run-7",
		Source:    "polymarket",
		SourceTag: "reconciled",
		Metrics:   dto.MetricsDTO{Volume24H: 1234.56},
	}

	msg, err := queue.ReportMessage(report)
	require.NoError(t, err)
	require.Equal(t, "polymarket", string(msg.Key))

	got, err := queue.DecodeReport(msg)
	require.NoError(t, err)
	require.Equal(t, "run-7", got.RunID)
	require.Equal(t, 1234.56, got.Metrics.Volume24H)
}

func TestDecodeReportFillsMissingIdentity(t *testing.T) {
	msg := kafka.Message{
		Key:       []byte("kalshi"),
		Value:     []byte(`{"source_tag":"reconciled"}`),
		Partition: 2,
		Offset:    41,
	}

	got, err := queue.DecodeReport(msg)
	require.NoError(t, err)
	require.Equal(t, "kalshi", got.Source)
	require.Equal(t, "kalshi-2-41", got.RunID)
}

func TestDecodeReportMalformed(t *testing.T) {
	_, err := queue.DecodeReport(kafka.Message{Value: []byte("not json")})
	require.Error(t, err)
}

func TestReportMessageNil(t *testing.T) {
	_, err := queue.ReportMessage(nil)
	require.Error(t, err)
}
