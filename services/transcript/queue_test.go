package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	yt "github.com/nijaru/yt-transcript/transcript"
)

func waitForState(t *testing.T, q *JobQueue, id string, want JobState) JobInfo {
	t.Helper()
	var info JobInfo
	require.Eventually(t, func() bool {
		var ok bool
		info, ok = q.Status(id)
		return ok && info.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return info
}

func TestJobQueueProcessesJobs(t *testing.T) {
	q := NewJobQueue(QueueConfig{Workers: 2, Capacity: 4}, zerolog.Nop())
	q.Start(func(_ context.Context, videoID string) yt.Result {
		switch videoID {
		case "private0000":
			return yt.Failure(yt.NewError(yt.KindVideoPrivate, "video is private"))
		case "nocaption00":
			return yt.NoCaptions(yt.SourceDirect)
		}
		return success()
	})
	defer q.Close()

	okID, err := q.Submit("dQw4w9WgXcQ", 0)
	require.NoError(t, err)
	privID, err := q.Submit("private0000", 1)
	require.NoError(t, err)
	noneID, err := q.Submit("nocaption00", 0)
	require.NoError(t, err)

	info := waitForState(t, q, okID, JobSucceeded)
	assert.Equal(t, "dQw4w9WgXcQ", info.VideoID)
	assert.False(t, info.StartedAt.IsZero())

	info = waitForState(t, q, privID, JobFailed)
	assert.Equal(t, "VIDEO_PRIVATE", info.ErrorCode)

	waitForState(t, q, noneID, JobNoCaption)
}

func TestJobQueueFull(t *testing.T) {
	q := NewJobQueue(QueueConfig{Workers: 1, Capacity: 1}, zerolog.Nop())

	_, err := q.Submit("dQw4w9WgXcQ", 0)
	require.NoError(t, err)
	_, err = q.Submit("dQw4w9WgXcQ", 0)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestJobQueueCancel(t *testing.T) {
	started := make(chan struct{})
	q := NewJobQueue(QueueConfig{Workers: 1, Capacity: 2}, zerolog.Nop())
	q.Start(func(ctx context.Context, _ string) yt.Result {
		close(started)
		<-ctx.Done()
		return yt.Failure(yt.NewError(yt.KindNetwork, "cancelled"))
	})
	defer q.Close()

	id, err := q.Submit("dQw4w9WgXcQ", 0)
	require.NoError(t, err)
	<-started

	assert.True(t, q.Cancel(id))
	waitForState(t, q, id, JobCancelled)
	assert.False(t, q.Cancel(id))
}

func TestJobQueueUnknownJob(t *testing.T) {
	q := NewJobQueue(QueueConfig{}, zerolog.Nop())
	_, ok := q.Status("missing")
	assert.False(t, ok)
	assert.False(t, q.Cancel("missing"))
}

func TestJobQueueRetainsBoundedHistory(t *testing.T) {
	q := NewJobQueue(QueueConfig{Workers: 1, Capacity: 4, Retained: 2}, zerolog.Nop())
	q.Start(func(context.Context, string) yt.Result { return success() })
	defer q.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Submit("dQw4w9WgXcQ", 0)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	waitForState(t, q, ids[2], JobSucceeded)

	_, ok := q.Status(ids[0])
	assert.False(t, ok, "oldest finished job is evicted")
}

func TestJobQueueClosedRejectsSubmit(t *testing.T) {
	q := NewJobQueue(QueueConfig{Workers: 1, Capacity: 1}, zerolog.Nop())
	q.Start(func(context.Context, string) yt.Result { return success() })
	q.Close()

	_, err := q.Submit("dQw4w9WgXcQ", 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}
