package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/liftmpc/core/metrics"
	"github.com/kilianp07/liftmpc/infra/logger"
)

// InfluxSink writes scheduling records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordTick writes one tick summary.
func (s *InfluxSink) RecordTick(rec coremetrics.TickRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scheduler_tick").
		AddTag("tick_id", rec.TickID).
		AddTag("degraded", strconv.FormatBool(rec.Degraded)).
		AddField("candidates", rec.Candidates).
		AddField("assigned", rec.Assigned).
		AddField("deferred", rec.Deferred).
		AddField("model_version", int64(rec.ModelVersion)).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignments writes one point per committed request.
func (s *InfluxSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment").
			AddTag("elevator_id", r.ElevatorID).
			AddTag("tick_id", r.TickID).
			AddTag("tie_broken", strconv.FormatBool(r.TieBroken)).
			AddField("request_id", r.RequestID).
			AddField("origin", r.Origin).
			AddField("cost", round3(r.Cost)).
			AddField("journey_s", round3(r.Journey.Seconds())).
			AddField("energy_j", round3(r.Energy)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordElevatorState writes a snapshot of a car.
func (s *InfluxSink) RecordElevatorState(rec coremetrics.ElevatorStateRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("elevator_state").
		AddTag("elevator_id", rec.ElevatorID).
		AddTag("direction", rec.Direction).
		AddField("position", round3(rec.Position)).
		AddField("load_kg", round3(rec.Load)).
		AddField("passengers", rec.Passengers).
		AddField("stops", rec.Stops).
		AddField("idle_s", round3(rec.IdleTime.Seconds())).
		AddField("energy_j", round3(rec.Energy)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDeferred writes a deferred request.
func (s *InfluxSink) RecordDeferred(rec coremetrics.DeferredRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("deferred_request").
		AddTag("tick_id", rec.TickID).
		AddTag("reason", rec.Reason).
		AddField("request_id", rec.RequestID).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
