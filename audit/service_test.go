package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nosgoth/eldergod/model"
	"github.com/nosgoth/eldergod/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func TestNew_StartsWorker(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	require.NotNil(t, svc)
	svc.Stop(context.Background())
}

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	userID := int64(1001)
	targetID := int64(2002)
	svc.Log(Entry{
		TraceID:    "trace-123",
		UserID:     &userID,
		TargetID:   &targetID,
		Action:     "curse",
		Detail:     map[string]int{"penalty": -5},
		DurationMs: 42,
	})

	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	assert.Equal(t, "curse", logs[0].Action)
	require.NotNil(t, logs[0].DiscordID)
	assert.Equal(t, userID, *logs[0].DiscordID)
	require.NotNil(t, logs[0].TargetID)
	assert.Equal(t, targetID, *logs[0].TargetID)
	assert.Equal(t, 42, logs[0].DurationMs)

	var detail map[string]int
	require.NoError(t, json.Unmarshal(logs[0].Detail, &detail))
	assert.Equal(t, -5, detail["penalty"])
}

func TestLog_MultipleLogs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < 10; i++ {
		svc.Log(Entry{Action: "levelup attempt (fail)"})
	}

	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(10), count)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < batchSize; i++ {
		svc.Log(Entry{Action: "batch"})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(batchSize), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	defer svc.Stop(context.Background())

	svc.Log(Entry{Action: "timer_test"})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AuditLog{}).Where("action = ?", "timer_test").Count(&count)
		return count == 1
	}, 4*time.Second, 100*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}

func TestLog_NilFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{Action: "spectral"})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].DiscordID)
	assert.Nil(t, logs[0].TargetID)
	assert.JSONEq(t, "null", string(logs[0].Detail))
}

func TestLog_UnserializableDetail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{Action: "odd", Detail: make(chan int)})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "odd", logs[0].Action)
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < queueSize+10; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())
}

func TestRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	a, b := int64(1), int64(2)
	svc.Log(Entry{UserID: &a, Action: "devour"})
	svc.Log(Entry{UserID: &b, TargetID: &a, Action: "curse"})
	svc.Log(Entry{UserID: &b, Action: "swim"})
	svc.Stop(context.Background())

	logs, err := svc.Recent(context.Background(), a, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "curse", logs[0].Action)
	assert.Equal(t, "devour", logs[1].Action)
}
