package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/domain/task"
	"hll/contentbot/internal/entrypoint"
	"hll/contentbot/internal/navigation"
	"hll/contentbot/internal/queue"
	"hll/contentbot/internal/render"
	"hll/contentbot/internal/repository"
	"hll/contentbot/internal/session"
	"hll/contentbot/internal/state"
)

// Service is the dispatch boundary: it routes selection events to sessions,
// applies the recovery policy for per-session errors, runs the idle sweep,
// and drives the refresh workers.
type Service struct {
	registry  *session.Registry
	store     *catalog.Store
	renderer  *render.Renderer
	repo      repository.EntryPointRepository
	state     state.StateManager
	queue     queue.Queue
	messenger entrypoint.Messenger

	rl            ratelimit.Limiter
	groupName     string
	minIdleTime   time.Duration
	idleTimeout   time.Duration
	sweepInterval time.Duration
}

func NewService(
	registry *session.Registry,
	store *catalog.Store,
	renderer *render.Renderer,
	repo repository.EntryPointRepository,
	stateManager state.StateManager,
	q queue.Queue,
	messenger entrypoint.Messenger,
	maxEditPerSecond int,
	groupName string,
	minIdleTime int,
	idleTimeout int,
	sweepInterval int,
) *Service {
	return &Service{
		registry:      registry,
		store:         store,
		renderer:      renderer,
		repo:          repo,
		state:         stateManager,
		queue:         q,
		messenger:     messenger,
		// ratelimit.New panics on a non-positive rate
		rl:            ratelimit.New(max(1, maxEditPerSecond)),
		groupName:     groupName,
		minIdleTime:   time.Duration(minIdleTime) * time.Second,
		idleTimeout:   time.Duration(idleTimeout) * time.Second,
		sweepInterval: time.Duration(sweepInterval) * time.Second,
	}
}

// StartSession creates (or returns) the private session for a key and renders
// its current state.
func (s *Service) StartSession(key domain.SessionKey, kind domain.CatalogKind) domain.MenuView {
	sess := s.registry.GetOrCreate(key, kind)
	return s.renderer.Render(sess.Machine)
}

// HandleSelection applies one decoded user action to its session and returns
// the view to show. Per the recovery policy, a missing or closed session
// restarts silently at the root of its catalog, and an invalid transition
// re-renders the unchanged state. Only ErrSessionBusy surfaces to the caller,
// which should ask the user to retry.
func (s *Service) HandleSelection(ev domain.SelectionEvent) (domain.MenuView, error) {
	sess, err := s.registry.Get(ev.Key)
	if err != nil {
		log.Debugf("Session %s not found, starting fresh at root", ev.Key)
		sess = s.registry.GetOrCreate(ev.Key, ev.Catalog)
	}

	var view domain.MenuView
	err = sess.Do(s.registry.Now(), func(m *navigation.Machine) error {
		switch ev.Action {
		case domain.ActionSelect:
			if err := m.Select(ev.ChoiceID); err != nil {
				return err
			}
		case domain.ActionBack:
			if _, err := m.Back(); err != nil {
				return err
			}
		case domain.ActionClose:
			m.Close()
		default:
			return fmt.Errorf("unknown action %q", ev.Action)
		}
		view = s.renderer.Render(m)
		return nil
	})

	switch {
	case err == nil:
		if view.Closed {
			s.registry.Remove(ev.Key)
		}
		return view, nil
	case errors.Is(err, domain.ErrSessionBusy):
		return domain.MenuView{}, err
	case errors.Is(err, domain.ErrSessionClosed):
		// Closed machine still registered (e.g. sweep raced the action):
		// silently start over at the root.
		s.registry.Remove(ev.Key)
		fresh := s.registry.GetOrCreate(ev.Key, ev.Catalog)
		log.Debugf("Session %s was closed, restarted at root", ev.Key)
		return s.renderer.Render(fresh.Machine), nil
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		// Stale menu against a changed catalog: state is unchanged,
		// re-render it.
		log.Warnf("⚠️ Invalid selection on session %s: %v", ev.Key, err)
		return s.renderCurrent(sess)
	default:
		log.Errorf("❌ Unexpected error on session %s: %v", ev.Key, err)
		return s.renderCurrent(sess)
	}
}

// renderCurrent re-renders the session's unchanged state. If a concurrent
// action holds the session lock the busy error propagates; the session is
// alive, so answering with the closed view would be a lie.
func (s *Service) renderCurrent(sess *session.Session) (domain.MenuView, error) {
	var view domain.MenuView
	err := sess.Do(s.registry.Now(), func(m *navigation.Machine) error {
		view = s.renderer.Render(m)
		return nil
	})
	if err != nil {
		return domain.MenuView{}, err
	}
	return view, nil
}

// RunSweeper expires idle sessions on a fixed interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	log.Infof("🧹 Session sweeper running every %s (idle timeout %s)", s.sweepInterval, s.idleTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.registry.SweepExpired(s.idleTimeout)
		}
	}
}

// RunWorkers consumes refresh tasks from the redis streams until ctx ends.
func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	g, ctx := errgroup.WithContext(ctx)

	s.runWorkersForStream(ctx, g, numWorkers, queue.StreamPrefix+"EntryPointRefreshTask", "main")
	s.runWorkersForStream(ctx, g, max(1, numWorkers/2), queue.StreamPrefix+"RefreshRetryTask", "retry")

	return g.Wait()
}

func (s *Service) runWorkersForStream(ctx context.Context, g *errgroup.Group, numWorkers int, streamName, workerType string) {
	// Auto-claimer for this stream
	g.Go(func() error {
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	})

	// Regular workers for this stream
	for i := 0; i < numWorkers; i++ {
		workerID := i + 1
		g.Go(func() error {
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return ctx.Err()
				default:
					msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
					if err != nil {
						log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
						continue
					}

					if msg != nil {
						if err := s.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		})
	}
}

func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	var streamName string
	switch taskType {
	case "EntryPointRefreshTask":
		streamName = queue.StreamPrefix + "EntryPointRefreshTask"
		refreshTask, err := task.UnmarshalTask[*task.EntryPointRefreshTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal refresh task data: %w", err)
		}

		if err := s.refreshEntryPoint(ctx, refreshTask.ChannelID, refreshTask.Catalog, refreshTask.Version); err != nil {
			// Move to the retry stream instead of failing completely
			retryTask := &task.RefreshRetryTask{
				ChannelID: refreshTask.ChannelID,
				Catalog:   refreshTask.Catalog,
				Version:   refreshTask.Version,
				Error:     err.Error(),
			}
			if _, addErr := s.queue.AddTask(ctx, retryTask); addErr != nil {
				log.Errorf("❌ Failed to add retry task for %s:%s: %v", refreshTask.ChannelID, refreshTask.Catalog, addErr)
			} else {
				log.Warnf("🔄 Queued retry for %s:%s refresh due to error: %v", refreshTask.ChannelID, refreshTask.Catalog, err)
			}
		}

	case "RefreshRetryTask":
		streamName = queue.StreamPrefix + "RefreshRetryTask"
		retryTask, err := task.UnmarshalTask[*task.RefreshRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}

		if err := s.retryRefresh(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry refresh: %w", err)
		}

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if err := s.queue.AckTask(ctx, streamName, s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// refreshEntryPoint re-renders one persistent browser message if its recorded
// catalog version is outdated. Stale entry points are skipped; they only come
// back through explicit setup.
func (s *Service) refreshEntryPoint(ctx context.Context, channelID string, kind domain.CatalogKind, version string) error {
	ep, err := s.repo.Get(ctx, channelID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warnf("⚠️ Refresh task for unknown entry point %s:%s, dropping", channelID, kind)
			return nil
		}
		return err
	}
	if ep.Stale {
		log.Debugf("Entry point %s is stale, skipping refresh", ep.Ref())
		return nil
	}

	rendered, err := s.state.GetRenderedVersion(ctx, channelID, kind)
	if err != nil {
		return err
	}
	if rendered == version {
		log.Debugf("Entry point %s already at version %s", ep.Ref(), version)
		return nil
	}

	s.rl.Take()
	view := s.renderer.Root(kind)
	if err := s.messenger.EditBrowser(ctx, ep.ChannelID, ep.MessageID, view, render.EntryCustomID(ep.ChannelID, kind)); err != nil {
		return fmt.Errorf("failed to edit browser message %s: %w", ep.Ref(), err)
	}

	if err := s.state.SetRenderedVersion(ctx, channelID, kind, version); err != nil {
		return err
	}
	log.Infof("✅ Refreshed entry point %s to catalog version %s", ep.Ref(), version)
	return nil
}

func (s *Service) retryRefresh(ctx context.Context, retryTask *task.RefreshRetryTask) error {
	retryTask.RetryCount++

	log.Infof("🔄 Retrying refresh of %s:%s (attempt %d)",
		retryTask.ChannelID, retryTask.Catalog, retryTask.RetryCount)

	if err := s.refreshEntryPoint(ctx, retryTask.ChannelID, retryTask.Catalog, retryTask.Version); err != nil {
		newRetryTask := &task.RefreshRetryTask{
			ChannelID:  retryTask.ChannelID,
			Catalog:    retryTask.Catalog,
			Version:    retryTask.Version,
			RetryCount: retryTask.RetryCount,
			Error:      err.Error(),
		}
		if _, addErr := s.queue.AddTask(ctx, newRetryTask); addErr != nil {
			log.Errorf("❌ Failed to re-add retry task for %s:%s: %v", retryTask.ChannelID, retryTask.Catalog, addErr)
			return addErr
		}
		log.Warnf("🔄 Refresh of %s:%s failed again, will retry (attempt %d): %v",
			retryTask.ChannelID, retryTask.Catalog, retryTask.RetryCount, err)
		return nil
	}

	if retryTask.RetryCount > 1 {
		log.Infof("✅ Refresh of %s:%s recovered after %d attempts",
			retryTask.ChannelID, retryTask.Catalog, retryTask.RetryCount)
	}
	return nil
}
