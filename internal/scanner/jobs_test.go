package scanner_test

import (
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/scanner"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, job *scanner.Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestManager_RunsToCompletion(t *testing.T) {
	dir := &gatedDirectory{communities: abc, members: map[string]bool{"A/" + userOne: true, "C/" + userOne: true}}
	m := scanner.NewManager(scanner.New(dir, fastOptions(), quietLogger()), quietLogger())

	job, err := m.Start(scanner.KindWatchlist, []string{userOne, userTwo})
	require.NoError(t, err)
	waitDone(t, job)

	st, err := m.Status(job.ID())
	require.NoError(t, err)
	assert.Equal(t, scanner.JobCompleted, st.State)
	assert.Equal(t, 2, st.Checked)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, []models.MutualityResult{{AuthorID: userOne, DisplayName: "user-" + userOne, MutualCommunityCount: 2}}, st.Results)
	assert.NotNil(t, st.FinishedAt)

	_, running := m.Current()
	assert.False(t, running)
}

func TestManager_OneScanAtATimeAndCancel(t *testing.T) {
	dir := &gatedDirectory{communities: abc, gate: make(chan struct{})}
	m := scanner.NewManager(scanner.New(dir, fastOptions(), quietLogger()), quietLogger())

	job, err := m.Start(scanner.KindCases, []string{userOne, userTwo})
	require.NoError(t, err)

	_, err = m.Start(scanner.KindCases, []string{userOne})
	assert.True(t, errors.Is(err, scanner.ErrScanRunning))

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, job.ID(), current.ID())

	require.NoError(t, m.Cancel(job.ID()))
	waitDone(t, job)

	assert.Equal(t, scanner.JobCancelled, job.Status().State)

	// a new scan may start once the previous one is gone
	close(dir.gate)
	next, err := m.Start(scanner.KindCases, []string{userOne})
	require.NoError(t, err)
	waitDone(t, next)
}

func TestManager_UnknownJob(t *testing.T) {
	m := scanner.NewManager(scanner.New(&gatedDirectory{}, fastOptions(), quietLogger()), quietLogger())

	_, err := m.Status("missing")
	assert.True(t, errors.Is(err, scanner.ErrUnknownJob))
	assert.True(t, errors.Is(m.Cancel("missing"), scanner.ErrUnknownJob))
	_, _, err = m.Subscribe("missing")
	assert.True(t, errors.Is(err, scanner.ErrUnknownJob))
}

func TestManager_SubscribeReceivesFinalStatus(t *testing.T) {
	dir := &gatedDirectory{communities: abc, gate: make(chan struct{})}
	m := scanner.NewManager(scanner.New(dir, fastOptions(), quietLogger()), quietLogger())
	job, err := m.Start(scanner.KindWatchlist, []string{userOne})
	require.NoError(t, err)

	updates, unsubscribe, err := m.Subscribe(job.ID())
	require.NoError(t, err)
	defer unsubscribe()

	first := <-updates
	assert.Equal(t, scanner.JobRunning, first.State)

	close(dir.gate)
	var last scanner.Status
	for st := range updates {
		last = st
	}
	assert.Equal(t, scanner.JobCompleted, last.State)

	// subscribing after completion yields the final snapshot once
	late, _, err := m.Subscribe(job.ID())
	require.NoError(t, err)
	st, ok := <-late
	assert.True(t, ok)
	assert.Equal(t, scanner.JobCompleted, st.State)
	_, ok = <-late
	assert.False(t, ok)
}
