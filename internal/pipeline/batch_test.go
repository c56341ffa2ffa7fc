package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchRunner(store *fakeStore, client *fakeClient, resolver *fakeResolver, history *fakeHistory) *BatchRunner {
	engine := NewEngine(store, client, 3)
	if history == nil {
		return NewBatchRunner(store, nil, resolver, engine, 50, 3)
	}
	return NewBatchRunner(store, history, resolver, engine, 50, 3)
}

func TestRunBatchSelectsOnlyDuePosts(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		pendingPost(1, 10, now.Add(-time.Minute)),
		pendingPost(2, 10, now.Add(-time.Minute)),
		pendingPost(3, 10, now.Add(-time.Minute)),
		pendingPost(4, 10, now.Add(-time.Minute)),
		pendingPost(5, 10, now.Add(-time.Minute)),
		pendingPost(6, 10, now.Add(time.Hour)), // not due yet
	)
	client := &fakeClient{containerID: "c1"}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{10: testAccount}}

	summary := newBatchRunner(store, client, resolver, nil).RunBatch(context.Background())

	assert.Equal(t, 5, summary.ContainersCreated)
	assert.Equal(t, 5, client.createCalls)

	future, _ := store.GetByID(context.Background(), 6)
	assert.False(t, future.ContainerID.Valid, "future post must not be touched")
}

func TestRunBatchAdvancesOneStagePerTick(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingPost(1, 10, now.Add(-time.Minute)))
	client := &fakeClient{
		containerID: "c1",
		statusCodes: []string{models.ContainerStatusFinished},
	}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{10: testAccount}}
	runner := newBatchRunner(store, client, resolver, nil)

	// Tick 1: container created, nothing else.
	summary := runner.RunBatch(context.Background())
	assert.Equal(t, Summary{ContainersCreated: 1}, summary)
	assert.Zero(t, client.statusCalls)

	// Tick 2: status poll finds FINISHED.
	summary = runner.RunBatch(context.Background())
	assert.Equal(t, Summary{ContainersChecked: 1, ContainersFinished: 1}, summary)
	assert.Zero(t, client.publishCalls)

	// Tick 3: publish.
	summary = runner.RunBatch(context.Background())
	assert.Equal(t, Summary{PublishedSuccess: 1}, summary)

	post, _ := store.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusPosted, post.Status)
	assert.True(t, post.PublishedAt.Valid)
}

func TestRunBatchMissingAccountFailsWithoutRetry(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingPost(1, 99, now.Add(-time.Minute)))
	client := &fakeClient{}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{}}

	summary := newBatchRunner(store, client, resolver, nil).RunBatch(context.Background())

	assert.Equal(t, 1, summary.ContainerErrors)
	assert.Zero(t, client.createCalls)

	post, _ := store.GetByID(context.Background(), 1)
	assert.Equal(t, models.PostStatusFailure, post.Status)
	assert.Zero(t, post.RetryAttempts, "missing account must not burn retry budget")
	require.True(t, post.LastErrorMessage.Valid)

	perr, err := platform.ParseError(post.LastErrorMessage.String)
	require.NoError(t, err)
	assert.Equal(t, "No linked account", perr.Title)
}

func TestRunBatchIsolatesPerPostFailures(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		pendingPost(1, 99, now.Add(-time.Minute)), // no account
		pendingPost(2, 10, now.Add(-time.Minute)),
		pendingPost(3, 10, now.Add(-time.Minute)),
	)
	client := &fakeClient{containerID: "c1"}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{10: testAccount}}

	summary := newBatchRunner(store, client, resolver, nil).RunBatch(context.Background())

	// The account-less post must not stop the other two.
	assert.Equal(t, 1, summary.ContainerErrors)
	assert.Equal(t, 2, summary.ContainersCreated)
}

func TestRunBatchMixedOutcomesSummary(t *testing.T) {
	now := time.Now()
	finished := pendingPost(2, 10, now.Add(-time.Minute))
	finished.ContainerID = ns("c2")
	finished.ContainerStatus = ns(models.ContainerStatusFinished)

	polling := pendingPost(3, 10, now.Add(-time.Minute))
	polling.ContainerID = ns("c3")
	polling.ContainerStatus = ns(models.ContainerStatusInProgress)

	store := newFakeStore(
		pendingPost(1, 10, now.Add(-time.Minute)),
		finished,
		polling,
	)
	client := &fakeClient{
		containerID: "c1",
		statusCodes: []string{models.ContainerStatusInProgress},
	}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{10: testAccount}}
	history := &fakeHistory{}

	summary := newBatchRunner(store, client, resolver, history).RunBatch(context.Background())

	assert.Equal(t, Summary{
		ContainersCreated: 1,
		ContainersChecked: 1,
		PublishedSuccess:  1,
	}, summary)
	assert.Len(t, history.rows, 3)
}

func TestRunBatchSkipsExhaustedPosts(t *testing.T) {
	now := time.Now()
	exhausted := pendingPost(1, 10, now.Add(-time.Minute))
	exhausted.Status = models.PostStatusRetry
	exhausted.RetryAttempts = 3

	store := newFakeStore(exhausted)
	client := &fakeClient{}
	resolver := &fakeResolver{accounts: map[int64]platform.Account{10: testAccount}}

	summary := newBatchRunner(store, client, resolver, nil).RunBatch(context.Background())

	assert.Equal(t, Summary{}, summary)
	assert.Zero(t, client.createCalls)
}
