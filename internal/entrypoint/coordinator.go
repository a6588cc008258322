package entrypoint

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"hll/contentbot/internal/catalog"
	"hll/contentbot/internal/domain"
	"hll/contentbot/internal/domain/task"
	"hll/contentbot/internal/queue"
	"hll/contentbot/internal/render"
	"hll/contentbot/internal/repository"
	"hll/contentbot/internal/session"
	"hll/contentbot/internal/state"
)

// Messenger is the message persistence boundary of the chat platform. The
// coordinator is the only component allowed to touch persistent messages.
type Messenger interface {
	PostBrowser(ctx context.Context, channelID string, view domain.MenuView, customID string) (string, error)
	EditBrowser(ctx context.Context, channelID, messageID string, view domain.MenuView, customID string) error
	MessageExists(ctx context.Context, channelID, messageID string) (bool, error)
}

// Coordinator owns the long-lived browser message per (channel, catalog). It
// posts and replaces those messages, re-binds to them after a restart, and
// spawns a fresh private session for every interaction against them. The
// persistent message itself is never mutated by navigation.
type Coordinator struct {
	repo      repository.EntryPointRepository
	state     state.StateManager
	registry  *session.Registry
	store     *catalog.Store
	renderer  *render.Renderer
	queue     queue.Queue
	messenger Messenger
}

func NewCoordinator(
	repo repository.EntryPointRepository,
	stateManager state.StateManager,
	registry *session.Registry,
	store *catalog.Store,
	renderer *render.Renderer,
	q queue.Queue,
	messenger Messenger,
) *Coordinator {
	return &Coordinator{
		repo:      repo,
		state:     stateManager,
		registry:  registry,
		store:     store,
		renderer:  renderer,
		queue:     q,
		messenger: messenger,
	}
}

// Setup posts (or replaces) the persistent browser message for a catalog in a
// channel. canManage is the requester's capability check; the identity layer
// computes it, the coordinator only enforces it.
func (c *Coordinator) Setup(ctx context.Context, channelID string, kind domain.CatalogKind, canManage bool) (domain.EntryPoint, error) {
	if !canManage {
		return domain.EntryPoint{}, domain.ErrPermissionDenied
	}

	view := c.renderer.Root(kind)
	messageID, err := c.messenger.PostBrowser(ctx, channelID, view, render.EntryCustomID(channelID, kind))
	if err != nil {
		return domain.EntryPoint{}, fmt.Errorf("failed to post browser message: %w", err)
	}

	ep := domain.EntryPoint{
		ChannelID: channelID,
		MessageID: messageID,
		Catalog:   kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.repo.Save(ctx, ep); err != nil {
		return domain.EntryPoint{}, err
	}
	if err := c.state.SetRenderedVersion(ctx, channelID, kind, c.store.Version()); err != nil {
		log.Warnf("⚠️ Failed to record rendered version for %s: %v", ep.Ref(), err)
	}

	log.Infof("📌 Persistent %s browser created in channel %s (message %s)", kind, channelID, messageID)
	return ep, nil
}

// Reconcile re-validates every stored entry point after a restart. A message
// that still exists is left alone (no duplicate posts); one that is gone is
// marked stale and logged. Recreation stays an explicit setup action, so a
// deleted browser never silently reappears. Entry points whose rendered
// catalog version is outdated get a refresh task enqueued.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	eps, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entry points: %w", err)
	}

	for _, ep := range eps {
		if ep.Stale {
			log.Debugf("Skipping stale entry point %s", ep.Ref())
			continue
		}

		exists, err := c.messenger.MessageExists(ctx, ep.ChannelID, ep.MessageID)
		if err != nil {
			log.Errorf("❌ Failed to check message for entry point %s: %v", ep.Ref(), err)
			continue
		}
		if !exists {
			log.Warnf("⚠️ Browser message for %s was deleted, marking stale", ep.Ref())
			if err := c.repo.MarkStale(ctx, ep.ChannelID, ep.Catalog); err != nil {
				log.Errorf("❌ Failed to mark entry point %s stale: %v", ep.Ref(), err)
			}
			continue
		}

		rendered, err := c.state.GetRenderedVersion(ctx, ep.ChannelID, ep.Catalog)
		if err != nil {
			log.Errorf("❌ Failed to read rendered version for %s: %v", ep.Ref(), err)
			continue
		}
		if rendered != c.store.Version() {
			log.Infof("🔄 Entry point %s rendered version %q is outdated, queuing refresh", ep.Ref(), rendered)
			if err := c.enqueueRefresh(ctx, ep); err != nil {
				log.Errorf("❌ Failed to queue refresh for %s: %v", ep.Ref(), err)
			}
		}
	}

	log.Infof("✅ Reconciled %d entry points", len(eps))
	return nil
}

// OnInteraction spawns (or resumes) the private session for one interaction
// against an entry point. The key binds user AND interaction id, so unlimited
// users browse the same entry point concurrently and one user's two browsers
// never alias.
func (c *Coordinator) OnInteraction(kind domain.CatalogKind, userID, interactionID string) *session.Session {
	key := domain.NewSessionKey(userID, interactionID)
	return c.registry.GetOrCreate(key, kind)
}

// RequestRefresh enqueues a refresh task for every active entry point,
// returning the number queued. Workers pick the tasks up and edit outdated
// messages.
func (c *Coordinator) RequestRefresh(ctx context.Context) (int, error) {
	eps, err := c.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load entry points: %w", err)
	}

	queued := 0
	for _, ep := range eps {
		if ep.Stale {
			continue
		}
		if err := c.enqueueRefresh(ctx, ep); err != nil {
			log.Errorf("❌ Failed to queue refresh for %s: %v", ep.Ref(), err)
			continue
		}
		queued++
	}
	return queued, nil
}

func (c *Coordinator) enqueueRefresh(ctx context.Context, ep domain.EntryPoint) error {
	_, err := c.queue.AddTask(ctx, &task.EntryPointRefreshTask{
		ChannelID: ep.ChannelID,
		Catalog:   ep.Catalog,
		Version:   c.store.Version(),
	})
	return err
}
