package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replayYAML = `start: 2024-03-04T08:00:00Z
requests:
  - {id: r1, origin: 1, destination: 9, arrival_s: 0}
  - {id: r2, origin: 5, destination: 1, arrival_s: 2}
  - {id: r3, origin: 12, destination: 3, arrival_s: 4}
  - {id: r4, origin: 1, destination: 14, arrival_s: 30, load_kg: 90}
`

func TestDecodeReplay(t *testing.T) {
	rf, err := DecodeReplay(strings.NewReader(replayYAML), "yaml")
	require.NoError(t, err)
	require.Len(t, rf.Requests, 4)
	assert.True(t, t0.Equal(rf.Start), "start %s", rf.Start)
	assert.Equal(t, 90.0, rf.Requests[3].Load)

	rf, err = DecodeReplay(strings.NewReader(`{"requests":[{"id":"x","origin":2,"destination":4,"arrival_s":1.5}]}`), "json")
	require.NoError(t, err)
	assert.False(t, rf.Start.IsZero())

	_, err = DecodeReplay(strings.NewReader(""), "csv")
	assert.Error(t, err)
}

func TestReplayServesEveryone(t *testing.T) {
	rf, err := DecodeReplay(strings.NewReader(replayYAML), "yaml")
	require.NoError(t, err)

	rep, err := Replay(context.Background(), testConfig(), rf, ReplayOptions{Step: 500 * time.Millisecond})
	require.NoError(t, err)
	s := rep.Summary
	assert.Equal(t, 4, s.Served)
	assert.Greater(t, s.TotalPassengerTime, time.Duration(0))
	assert.Equal(t, s.TotalPassengerTime, s.TotalWait+s.TotalInCab)
	assert.Greater(t, s.Energy, 0.0)
	assert.InDelta(t, s.TotalPassengerTime.Seconds()+1e-4*s.Energy, s.Objective, 1e-6)
	assert.True(t, rep.Degraded)
	assert.Positive(t, rep.Ticks)
}

func TestReplayRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	rf := ReplayFile{Start: t0, Requests: []ReplayRequest{{ID: "x", Origin: 99, Destination: 1}}}
	_, err := Replay(context.Background(), cfg, rf, ReplayOptions{})
	assert.Error(t, err)

	cfg.Fleet = nil
	_, err = Replay(context.Background(), cfg, ReplayFile{Start: t0}, ReplayOptions{})
	assert.Error(t, err)
}

func TestReplayIncomplete(t *testing.T) {
	rf, err := DecodeReplay(strings.NewReader(replayYAML), "yaml")
	require.NoError(t, err)
	_, err = Replay(context.Background(), testConfig(), rf, ReplayOptions{Step: time.Second, MaxDuration: time.Second})
	assert.ErrorIs(t, err, ErrReplayIncomplete)
}
