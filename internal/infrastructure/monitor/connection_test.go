package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorWithoutChecksIsOnline(t *testing.T) {
	m := New(0, nil)
	assert.False(t, m.IsOnline(), "unknown until the first check")

	status := m.Refresh(context.Background())
	assert.True(t, status.Online)
	assert.True(t, m.IsOnline())
}

func TestMonitorReportsFailingComponent(t *testing.T) {
	m := New(0, nil)
	failing := true
	m.Add("bolt", func(context.Context) error { return nil })
	m.Add("redis", func(context.Context) error {
		if failing {
			return errors.New("connection refused")
		}
		return nil
	})

	m.Refresh(context.Background())
	require.False(t, m.IsOnline())
	status := m.GetStatus()
	assert.True(t, status.Components["bolt"].Online)
	assert.False(t, status.Components["redis"].Online)
	assert.Equal(t, "connection refused", status.Components["redis"].Error)

	failing = false
	m.Refresh(context.Background())
	assert.True(t, m.IsOnline())
}

func TestMonitorStartStop(t *testing.T) {
	m := New(0, nil)
	m.Add("bolt", func(context.Context) error { return nil })
	m.Start()
	assert.True(t, m.IsOnline())
	m.Stop()
	m.Stop()
}
