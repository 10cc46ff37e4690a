package cli

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"sync", "queue", "status", "config", "record", "daemon", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_BootstrapReceivesFlags(t *testing.T) {
	var got Options
	closed := false
	SetBootstrap(func(o Options) (*Services, func() error, error) {
		got = o
		s := &Services{SyncManager: &mockSyncManager{}}
		return s, func() error { closed = true; return nil }, nil
	})
	defer func() {
		SetBootstrap(nil)
		SetServices(nil)
		opts = Options{}
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--data-dir", "/tmp/data", "--config-dir", "/tmp/conf", "queue", "retry"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Equal(t, "/tmp/data", got.DataDir)
	assert.Equal(t, "/tmp/conf", got.ConfigDir)
	assert.True(t, closed)
	assert.Contains(t, buf.String(), "0 failed entries moved back to pending")
}

func TestRootCmd_BootstrapError(t *testing.T) {
	SetBootstrap(func(Options) (*Services, func() error, error) {
		return nil, nil, errors.New("open database: locked")
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

// Sync

func TestSyncCmd_DrainsThenReconciles(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.drainRes = domain.DrainResult{Attempted: 3, Done: 2, Retried: 1}
	ts.recon.res = domain.ReconcileResult{Tables: []domain.TableResult{{Table: "subscriptions", Fetched: 4, Pulled: 1}}}

	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "3 attempted, 2 done, 1 retried")
	assert.Contains(t, out, "subscriptions: fetched 4, inserted 0, pulled 1")
}

func TestSyncCmd_NotConfigured(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.drainRes = domain.DrainResult{NotConfigured: true}

	out, err := execute(t, "sync", "drain")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync is not configured")
}

func TestSyncCmd_ReconcileAbortedTable(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.recon.res = domain.ReconcileResult{Tables: []domain.TableResult{{Table: "subscriptions", Aborted: "HTTP 503"}}}
	ts.recon.err = errors.New("reconcile subscriptions: HTTP 503")

	out, err := execute(t, "sync", "reconcile")
	require.Error(t, err)
	assert.Contains(t, out, "subscriptions: aborted: HTTP 503")
}

func TestSyncCmd_ReconcileOneTable(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "sync", "reconcile", "subscriptions")
	require.NoError(t, err)
	assert.Equal(t, []string{"subscriptions"}, ts.recon.tables)
	assert.Contains(t, out, "unchanged 1")
}

func TestSyncCmd_ReconcileTableNotConfigured(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.recon.tableNotConfigured = true

	out, err := execute(t, "sync", "reconcile", "subscriptions")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync is not configured")
	assert.NotContains(t, out, "fetched")
}

func TestSyncCmd_WithoutServices(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "sync", "drain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

// Queue

func TestQueueListCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.status.pending = []*domain.SyncOperation{
		{ID: 7, Table: "subscriptions", RecordID: "r1", Kind: domain.OperationUpdate, Attempts: 1,
			CreatedAt: time.Now().Add(-time.Hour), LastError: "HTTP 503"},
	}
	ts.status.failed = []*domain.SyncOperation{
		{ID: 9, Table: "subscriptions", RecordID: "r2", Kind: domain.OperationInsert, LastError: "HTTP 400: bad"},
	}

	queueListFailed = false
	out, err := execute(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 pending entries")
	assert.Contains(t, out, "#7 UPDATE")
	assert.Contains(t, out, "subscriptions/r1")

	out, err = execute(t, "queue", "list", "--failed")
	queueListFailed = false
	require.NoError(t, err)
	assert.Contains(t, out, "#9")
	assert.Contains(t, out, "HTTP 400: bad")
}

func TestQueueListCmd_Empty(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	queueListFailed = false
	out, err := execute(t, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending entries.")
}

func TestQueueRetryAndPurge(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.sync.retried = 3

	out, err := execute(t, "queue", "retry")
	require.NoError(t, err)
	assert.Contains(t, out, "3 failed entries moved back to pending")

	out, err = execute(t, "queue", "purge", "--older-than", "48h")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, ts.sync.purgedFor)
	assert.Contains(t, out, "Purged 2 completed entries")
	queuePurgeAge = 7 * 24 * time.Hour
}

// Status

func TestStatusCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.status.status.LastDrain = &domain.DrainResult{Attempted: 2, Done: 2, EndedAt: time.Now()}
	ts.status.status.Tasks = []*domain.ScheduledTask{
		{ID: domain.TaskIDReconcile, Name: "Reconciliation", Interval: 15 * time.Minute, Enabled: true, LastError: "HTTP 503"},
	}

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "configured (from file)")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "2 done, 0 failed of 2")
	assert.Contains(t, out, "Reconcile:")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "every 15m0s")
	assert.Contains(t, out, "HTTP 503")
}

func TestStatusCmd_NotConfigured(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.status.status = &domain.SyncStatus{}

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not configured")
}

// Config

func TestConfigCmd_SetGetUnset(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "config", "set", driven.KeyRemoteURL, "https://example.test/rest/v1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/rest/v1", ts.config.GetString(driven.KeyRemoteURL))

	out, err := execute(t, "config", "get", driven.KeyRemoteURL)
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.test/rest/v1")

	_, err = execute(t, "config", "unset", driven.KeyRemoteURL)
	require.NoError(t, err)
	_, err = execute(t, "config", "get", driven.KeyRemoteURL)
	assert.Error(t, err)
}

func TestConfigCmd_MasksSecrets(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	require.NoError(t, ts.config.Set(driven.KeyRemoteAPIKey, "sk-abcdefghijklmnop"))
	require.NoError(t, ts.config.Set(driven.KeyMaxAttempts, "5"))

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "remote.api_key = sk-a...mnop")
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "sync.max_attempts = 5")
}

func TestConfigCmd_SetRequiresValueForPlainKeys(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "config", "set", driven.KeyRemoteURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a value is required")
}

// Record

func TestRecordCmd_Create(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "record", "create", "subscriptions", "userId=u1", "plan=gold", "amount=9.5", "endDate=null")
	require.NoError(t, err)
	assert.Contains(t, out, "Created subscriptions/rec-1 (u1)")
	assert.Equal(t, domain.Fields{"userId": "u1", "plan": "gold", "amount": 9.5, "endDate": nil}, ts.tracker.created)
}

func TestRecordCmd_UpdateAndDelete(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "record", "update", "subscriptions", "rec-1", "plan=silver")
	require.NoError(t, err)
	assert.Equal(t, domain.Fields{"plan": "silver"}, ts.tracker.updated)

	_, err = execute(t, "record", "delete", "subscriptions", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", ts.tracker.deleted)
}

func TestRecordCmd_BadPair(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "record", "create", "subscriptions", "userId")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordCmd_PropagatesErrors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.tracker.err = domain.ErrMissingIdentity

	_, err := execute(t, "record", "create", "subscriptions", "plan=gold")
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
}

// Daemon

func TestServeDaemon_RunsUntilCancelled(t *testing.T) {
	scheduler := &mockScheduler{}
	watched := make(chan struct{})
	cfg := &DaemonConfig{
		Scheduler: scheduler,
		Listen:    "127.0.0.1:0",
		Events:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		Fanout:    func(ctx context.Context) { <-ctx.Done() },
		Watch: func(ctx context.Context) error {
			close(watched)
			<-ctx.Done()
			return ctx.Err()
		},
	}

	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveDaemon(ctx, cmd, cfg) }()

	select {
	case <-watched:
	case <-time.After(time.Second):
		t.Fatal("config watch did not start")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.True(t, scheduler.started)
	assert.True(t, scheduler.stopped)
	assert.Contains(t, buf.String(), "ws://127.0.0.1:")
	assert.Contains(t, buf.String(), "Sync daemon stopped.")
}

func TestServeDaemon_ListenFailureStopsWorkers(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	var watchDone atomic.Bool
	var fanoutDone atomic.Bool
	scheduler := &mockScheduler{}
	cfg := &DaemonConfig{
		Scheduler: scheduler,
		Listen:    taken.Addr().String(),
		Events:    http.NotFoundHandler(),
		Fanout: func(ctx context.Context) {
			<-ctx.Done()
			fanoutDone.Store(true)
		},
		Watch: func(ctx context.Context) error {
			<-ctx.Done()
			watchDone.Store(true)
			return nil
		},
	}

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	done := make(chan error, 1)
	go func() { done <- serveDaemon(context.Background(), cmd, cfg) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen on")
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not give up after the listen failure")
	}
	assert.True(t, watchDone.Load())
	assert.True(t, fanoutDone.Load())

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.True(t, scheduler.stopped)
}

func TestDaemonCmd_NotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "daemon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not configured")
}
