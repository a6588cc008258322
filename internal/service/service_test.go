package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/domain/task"
	"hll/contentbot/internal/navigation"
	"hll/contentbot/internal/render"
	"hll/contentbot/internal/session"
)

const testTanks = `{
  "german": {
    "panzer4": {"display_name": "Panzer IV", "title": "Panzer IV — Tank Guide"},
    "tiger": {"display_name": "Tiger", "title": "Tiger — Tank Guide"}
  }
}`

type fakeRepo struct {
	eps map[string]domain.EntryPoint
}

func (r *fakeRepo) key(channelID string, catalog domain.CatalogKind) string {
	return channelID + ":" + catalog.String()
}

func (r *fakeRepo) Save(_ context.Context, ep domain.EntryPoint) error {
	r.eps[r.key(ep.ChannelID, ep.Catalog)] = ep
	return nil
}

func (r *fakeRepo) Get(_ context.Context, channelID string, catalog domain.CatalogKind) (domain.EntryPoint, error) {
	ep, ok := r.eps[r.key(channelID, catalog)]
	if !ok {
		return domain.EntryPoint{}, domain.ErrNotFound
	}
	return ep, nil
}

func (r *fakeRepo) List(_ context.Context) ([]domain.EntryPoint, error) { return nil, nil }

func (r *fakeRepo) MarkStale(_ context.Context, channelID string, catalog domain.CatalogKind) error {
	ep := r.eps[r.key(channelID, catalog)]
	ep.Stale = true
	r.eps[r.key(channelID, catalog)] = ep
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, channelID string, catalog domain.CatalogKind) error {
	delete(r.eps, r.key(channelID, catalog))
	return nil
}

type fakeState struct {
	versions map[string]string
}

func (s *fakeState) GetRenderedVersion(_ context.Context, channelID string, catalog domain.CatalogKind) (string, error) {
	return s.versions[channelID+":"+catalog.String()], nil
}

func (s *fakeState) SetRenderedVersion(_ context.Context, channelID string, catalog domain.CatalogKind, version string) error {
	s.versions[channelID+":"+catalog.String()] = version
	return nil
}

func (s *fakeState) ClearRenderedVersion(_ context.Context, channelID string, catalog domain.CatalogKind) error {
	delete(s.versions, channelID+":"+catalog.String())
	return nil
}

type fakeQueue struct {
	tasks []task.Task
	acked []string
}

func (q *fakeQueue) AddTask(_ context.Context, t task.Task) (string, error) {
	q.tasks = append(q.tasks, t)
	return fmt.Sprintf("%d-0", len(q.tasks)), nil
}

func (q *fakeQueue) GetTask(context.Context, string, string, string) (*redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) AckTask(_ context.Context, stream, _, msgID string) error {
	q.acked = append(q.acked, stream+"/"+msgID)
	return nil
}

func (q *fakeQueue) CreateGroup(context.Context, string, string) error { return nil }

func (q *fakeQueue) AutoClaim(context.Context, string, string, string, time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) EnsureStreamsExist(context.Context) error { return nil }

type fakeMessenger struct {
	edits   []string
	editErr error
}

func (m *fakeMessenger) PostBrowser(context.Context, string, domain.MenuView, string) (string, error) {
	return "msg-1", nil
}

func (m *fakeMessenger) EditBrowser(_ context.Context, channelID, messageID string, _ domain.MenuView, _ string) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, channelID+"/"+messageID)
	return nil
}

func (m *fakeMessenger) MessageExists(context.Context, string, string) (bool, error) {
	return true, nil
}

type svcHarness struct {
	svc       *Service
	registry  *session.Registry
	store     *catalog.Store
	repo      *fakeRepo
	state     *fakeState
	queue     *fakeQueue
	messenger *fakeMessenger
}

func newSvcHarness(t *testing.T) *svcHarness {
	t.Helper()
	store, err := catalog.Load(map[domain.CatalogKind][]byte{
		domain.CatalogTanks: []byte(testTanks),
	}, nil)
	require.NoError(t, err)

	h := &svcHarness{
		store:     store,
		registry:  session.NewRegistry(store, clock.NewMock()),
		repo:      &fakeRepo{eps: make(map[string]domain.EntryPoint)},
		state:     &fakeState{versions: make(map[string]string)},
		queue:     &fakeQueue{},
		messenger: &fakeMessenger{},
	}
	h.svc = NewService(
		h.registry, store, render.NewRenderer(store, nil),
		h.repo, h.state, h.queue, h.messenger,
		100, "test_group", 60, 300, 60,
	)
	return h
}

func TestService_StartSession(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "ix1")

	view := h.svc.StartSession(key, domain.CatalogTanks)
	assert.True(t, view.AtRoot)
	require.Len(t, view.Options, 1)
	assert.Equal(t, "tanks/german", view.Options[0].ID)
	assert.Equal(t, 1, h.registry.Len())
}

func TestService_HandleSelection(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "ix1")
	h.svc.StartSession(key, domain.CatalogTanks)

	event := func(action domain.Action, choice string) domain.SelectionEvent {
		return domain.SelectionEvent{Key: key, Catalog: domain.CatalogTanks, Action: action, ChoiceID: choice}
	}

	t.Run("select descends", func(t *testing.T) {
		view, err := h.svc.HandleSelection(event(domain.ActionSelect, "tanks/german"))
		require.NoError(t, err)
		assert.False(t, view.AtRoot)
		require.Len(t, view.Options, 2)
		assert.Equal(t, "tanks/german/panzer4", view.Options[0].ID)
	})

	t.Run("invalid choice re-renders unchanged state", func(t *testing.T) {
		view, err := h.svc.HandleSelection(event(domain.ActionSelect, "tanks/german/kv1"))
		require.NoError(t, err)
		require.Len(t, view.Options, 2)

		sess, err := h.registry.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []string{"tanks/german"}, sess.Machine.Path())
	})

	t.Run("back ascends", func(t *testing.T) {
		view, err := h.svc.HandleSelection(event(domain.ActionBack, ""))
		require.NoError(t, err)
		assert.True(t, view.AtRoot)
	})

	t.Run("close removes the session", func(t *testing.T) {
		view, err := h.svc.HandleSelection(event(domain.ActionClose, ""))
		require.NoError(t, err)
		assert.True(t, view.Closed)

		_, err = h.registry.Get(key)
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	})

	t.Run("action after close restarts at root", func(t *testing.T) {
		view, err := h.svc.HandleSelection(event(domain.ActionSelect, "tanks/german"))
		require.NoError(t, err)
		// The session vanished, so the select lands on a fresh root machine.
		assert.False(t, view.AtRoot)
		assert.Equal(t, 1, h.registry.Len())
	})
}

func TestService_HandleSelection_VanishedSessionRestartsAtRoot(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "never-seen")

	// A back action against an unknown key lands at the root, not an error.
	view, err := h.svc.HandleSelection(domain.SelectionEvent{
		Key: key, Catalog: domain.CatalogTanks, Action: domain.ActionBack,
	})
	require.NoError(t, err)
	assert.True(t, view.AtRoot)
}

func TestService_HandleSelection_BusyPropagates(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "ix1")
	h.svc.StartSession(key, domain.CatalogTanks)

	sess, err := h.registry.Get(key)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- sess.Do(h.registry.Now(), func(*navigation.Machine) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	_, err = h.svc.HandleSelection(domain.SelectionEvent{
		Key: key, Catalog: domain.CatalogTanks, Action: domain.ActionSelect, ChoiceID: "tanks/german",
	})
	assert.True(t, errors.Is(err, domain.ErrSessionBusy))

	close(release)
	require.NoError(t, <-done)
}

func TestService_RenderCurrentBusyPropagates(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "ix1")
	h.svc.StartSession(key, domain.CatalogTanks)

	sess, err := h.registry.Get(key)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- sess.Do(h.registry.Now(), func(*navigation.Machine) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	// A re-render racing an in-flight action reports busy, not a closed view.
	_, err = h.svc.renderCurrent(sess)
	assert.True(t, errors.Is(err, domain.ErrSessionBusy))

	close(release)
	require.NoError(t, <-done)

	view, err := h.svc.renderCurrent(sess)
	require.NoError(t, err)
	assert.True(t, view.AtRoot)
	assert.False(t, view.Closed)
}

func TestNewService_ClampsEditRate(t *testing.T) {
	h := newSvcHarness(t)
	assert.NotPanics(t, func() {
		NewService(
			h.registry, h.store, render.NewRenderer(h.store, nil),
			h.repo, h.state, h.queue, h.messenger,
			0, "test_group", 60, 300, 60,
		)
	})
}

func TestService_HandleSelection_ClosedMachineRestarts(t *testing.T) {
	h := newSvcHarness(t)
	key := domain.NewSessionKey("user1", "ix1")
	h.svc.StartSession(key, domain.CatalogTanks)

	// Close the machine without removing the session, as a sweep race would.
	sess, err := h.registry.Get(key)
	require.NoError(t, err)
	sess.Machine.Close()

	view, err := h.svc.HandleSelection(domain.SelectionEvent{
		Key: key, Catalog: domain.CatalogTanks, Action: domain.ActionBack,
	})
	require.NoError(t, err)
	assert.True(t, view.AtRoot)
	assert.False(t, view.Closed)

	fresh, err := h.registry.Get(key)
	require.NoError(t, err)
	assert.False(t, fresh.Machine.Closed())
}

func refreshMessage(t *testing.T, channelID string, kind domain.CatalogKind, version string) *redis.XMessage {
	t.Helper()
	data, err := (&task.EntryPointRefreshTask{ChannelID: channelID, Catalog: kind, Version: version}).TaskValue()
	require.NoError(t, err)
	return &redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"task_type": "EntryPointRefreshTask",
			"task_data": string(data),
		},
	}
}

func TestService_ProcessRefreshTask(t *testing.T) {
	ctx := context.Background()

	t.Run("outdated entry point gets edited", func(t *testing.T) {
		h := newSvcHarness(t)
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks,
		}))
		require.NoError(t, h.state.SetRenderedVersion(ctx, "chan1", domain.CatalogTanks, "old"))

		require.NoError(t, h.svc.processMessage(ctx, refreshMessage(t, "chan1", domain.CatalogTanks, h.store.Version())))

		assert.Equal(t, []string{"chan1/msg-1"}, h.messenger.edits)
		v, _ := h.state.GetRenderedVersion(ctx, "chan1", domain.CatalogTanks)
		assert.Equal(t, h.store.Version(), v)
		assert.Len(t, h.queue.acked, 1)
		assert.Empty(t, h.queue.tasks)
	})

	t.Run("current entry point is not touched", func(t *testing.T) {
		h := newSvcHarness(t)
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks,
		}))
		require.NoError(t, h.state.SetRenderedVersion(ctx, "chan1", domain.CatalogTanks, h.store.Version()))

		require.NoError(t, h.svc.processMessage(ctx, refreshMessage(t, "chan1", domain.CatalogTanks, h.store.Version())))
		assert.Empty(t, h.messenger.edits)
		assert.Len(t, h.queue.acked, 1)
	})

	t.Run("stale entry point is skipped", func(t *testing.T) {
		h := newSvcHarness(t)
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks, Stale: true,
		}))

		require.NoError(t, h.svc.processMessage(ctx, refreshMessage(t, "chan1", domain.CatalogTanks, h.store.Version())))
		assert.Empty(t, h.messenger.edits)
		assert.Len(t, h.queue.acked, 1)
	})

	t.Run("unknown entry point drops the task", func(t *testing.T) {
		h := newSvcHarness(t)
		require.NoError(t, h.svc.processMessage(ctx, refreshMessage(t, "nowhere", domain.CatalogTanks, h.store.Version())))
		assert.Empty(t, h.messenger.edits)
		assert.Empty(t, h.queue.tasks)
		assert.Len(t, h.queue.acked, 1)
	})

	t.Run("edit failure moves the task to the retry stream", func(t *testing.T) {
		h := newSvcHarness(t)
		h.messenger.editErr = errors.New("rate limited")
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks,
		}))

		require.NoError(t, h.svc.processMessage(ctx, refreshMessage(t, "chan1", domain.CatalogTanks, h.store.Version())))
		require.Len(t, h.queue.tasks, 1)

		retry, ok := h.queue.tasks[0].(*task.RefreshRetryTask)
		require.True(t, ok)
		assert.Equal(t, "chan1", retry.ChannelID)
		assert.Contains(t, retry.Error, "rate limited")
		// The original message is still acked; the retry stream owns it now.
		assert.Len(t, h.queue.acked, 1)
	})

	t.Run("malformed message fails without ack", func(t *testing.T) {
		h := newSvcHarness(t)
		err := h.svc.processMessage(ctx, &redis.XMessage{
			ID:     "1-0",
			Values: map[string]interface{}{"task_type": "MysteryTask", "task_data": "{}"},
		})
		assert.Error(t, err)
		assert.Empty(t, h.queue.acked)
	})
}

func TestService_RetryRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("successful retry recovers", func(t *testing.T) {
		h := newSvcHarness(t)
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks,
		}))
		require.NoError(t, h.state.SetRenderedVersion(ctx, "chan1", domain.CatalogTanks, "old"))

		retry := &task.RefreshRetryTask{
			ChannelID: "chan1", Catalog: domain.CatalogTanks, Version: h.store.Version(), Error: "rate limited",
		}
		require.NoError(t, h.svc.retryRefresh(ctx, retry))
		assert.Equal(t, []string{"chan1/msg-1"}, h.messenger.edits)
		assert.Empty(t, h.queue.tasks)
	})

	t.Run("repeated failure re-enqueues with a bumped count", func(t *testing.T) {
		h := newSvcHarness(t)
		h.messenger.editErr = errors.New("still rate limited")
		require.NoError(t, h.repo.Save(ctx, domain.EntryPoint{
			ChannelID: "chan1", MessageID: "msg-1", Catalog: domain.CatalogTanks,
		}))
		require.NoError(t, h.state.SetRenderedVersion(ctx, "chan1", domain.CatalogTanks, "old"))

		retry := &task.RefreshRetryTask{
			ChannelID: "chan1", Catalog: domain.CatalogTanks, Version: h.store.Version(), RetryCount: 1,
		}
		require.NoError(t, h.svc.retryRefresh(ctx, retry))
		require.Len(t, h.queue.tasks, 1)

		next, ok := h.queue.tasks[0].(*task.RefreshRetryTask)
		require.True(t, ok)
		assert.Equal(t, 2, next.RetryCount)
	})
}
