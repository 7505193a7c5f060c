package keepalive

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestService_StartStop(t *testing.T) {
	svc := NewService(0, zaptest.NewLogger(t).Sugar())
	assert.Equal(t, Status{Text: "Not connected"}, svc.Status())

	svc.Start("192.168.1.10:1701", func() {})
	status := svc.Status()
	assert.True(t, status.Active)
	assert.Equal(t, "Connected to 192.168.1.10:1701", status.Text)
	assert.False(t, status.Since.IsZero())

	svc.Stop()
	assert.False(t, svc.Status().Active)
	assert.Equal(t, "Not connected", svc.Status().Text)

	svc.Stop()
}

func TestService_RequestDisconnect(t *testing.T) {
	svc := NewService(0, zaptest.NewLogger(t).Sugar())
	assert.False(t, svc.RequestDisconnect(), "nothing to disconnect while idle")

	var calls atomic.Int32
	svc.Start("host", func() { calls.Add(1) })
	assert.True(t, svc.RequestDisconnect())
	assert.Equal(t, int32(1), calls.Load())

	svc.Stop()
	assert.False(t, svc.RequestDisconnect())
	assert.Equal(t, int32(1), calls.Load())
}

func TestService_RestartReplacesHeartbeat(t *testing.T) {
	svc := NewService(5*time.Millisecond, zaptest.NewLogger(t).Sugar())

	svc.Start("first", func() {})
	svc.Start("second", func() {})
	assert.Equal(t, "Connected to second", svc.Status().Text)

	time.Sleep(20 * time.Millisecond)
	svc.Stop()
	assert.Nil(t, svc.stopBeat)
}
