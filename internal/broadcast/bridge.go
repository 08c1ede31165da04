// Package broadcast implements the publish/subscribe bridge of spec.md
// §4.8: pushing and pulling exported subtrees against an external HTTP
// relay (see client.go), with BroadcastPublished/BroadcastSubscribed state
// persisted through graph.Store so re-publishes and re-fetches are
// incremental and idempotent.
package broadcast

import (
	"context"
	"time"

	"github.com/untoldecay/gram/internal/db"
	"github.com/untoldecay/gram/internal/graph"
)

// Relay TTLs from spec.md §6.2.
const (
	BroadcastTTL = 24 * time.Hour
	EpisodeTTL   = 24*time.Hour + 12*time.Hour
)

// Bridge wires a relay Client to a single db.Tx.
type Bridge struct {
	Client *Client
	Tx     *db.Tx
}

// New builds a Bridge over tx, talking to the relay through client.
func New(client *Client, tx *db.Tx) *Bridge {
	return &Bridge{Client: client, Tx: tx}
}

// PublishBroadcast implements publish_broadcast(id): creates a new
// broadcast the first time id is published, and thereafter pushes only the
// bytes modified since the newest episode already on the relay.
func (b *Bridge) PublishBroadcast(ctx context.Context, id graph.Id) error {
	store := b.Tx.Store()
	owned, ok, err := store.GetOwnedBroadcast(id)
	if err != nil {
		return err
	}
	now := b.Tx.Snapshot.LastUpdated()

	if !ok {
		exportBytes, err := b.Tx.Export(id)
		if err != nil {
			return err
		}
		exported, err := exportedIds(b.Tx, id)
		if err != nil {
			return err
		}
		result, err := b.Client.Create(ctx, now, exportBytes)
		if err != nil {
			return err
		}
		return store.PutOwnedBroadcast(id, graph.OwnedBroadcast{
			BroadcastId: result.BroadcastId,
			Root:        id,
			Exported:    exported,
			Token:       result.Token,
			LastUpdated: now,
			Expiration:  result.Expiration,
		})
	}

	episodes, err := b.Client.ListEpisodes(ctx, owned.BroadcastId)
	if err != nil {
		return err
	}
	newest := owned.LastUpdated
	for _, e := range episodes {
		if e > newest {
			newest = e
		}
	}
	if now <= newest {
		// Nothing has changed since the relay's newest episode.
		return nil
	}

	deltaBytes, err := b.Tx.ExportSince(id, newest)
	if err != nil {
		return err
	}
	if _, err := b.Client.PutEpisode(ctx, owned.BroadcastId, now, owned.Token, deltaBytes); err != nil {
		return err
	}
	exported, err := exportedIds(b.Tx, id)
	if err != nil {
		return err
	}
	owned.Exported = exported
	owned.LastUpdated = now
	return store.PutOwnedBroadcast(id, owned)
}

// SubscribeToBroadcast implements subscribe_to_broadcast(id): a first-time
// subscription performs a fetch; an existing one is left alone.
func (b *Bridge) SubscribeToBroadcast(ctx context.Context, broadcastId graph.Id) (graph.Id, error) {
	sub, ok, err := b.Tx.Store().GetSubscribedBroadcast(broadcastId)
	if err != nil {
		return graph.Id{}, err
	}
	if ok {
		return sub.Namespace, nil
	}
	return b.FetchBroadcast(ctx, broadcastId)
}

// FetchBroadcast implements fetch_broadcast(id): pulls every episode newer
// than the stored last_updated, concatenates their bytes (each episode is
// itself a complete detached log, so back-to-back concatenation is a valid
// combined log), and imports the result under a namespace that is chosen
// once and then reused for every later fetch of the same broadcast.
func (b *Bridge) FetchBroadcast(ctx context.Context, broadcastId graph.Id) (graph.Id, error) {
	store := b.Tx.Store()
	sub, ok, err := store.GetSubscribedBroadcast(broadcastId)
	if err != nil {
		return graph.Id{}, err
	}

	namespace := sub.Namespace
	lastUpdated := sub.LastUpdated
	if !ok {
		namespace, err = graph.NewId()
		if err != nil {
			return graph.Id{}, err
		}
	}

	episodes, err := b.Client.ListEpisodes(ctx, broadcastId)
	if err != nil {
		return graph.Id{}, err
	}

	var combined []byte
	newest := lastUpdated
	for _, e := range episodes {
		if e <= lastUpdated {
			continue
		}
		chunk, err := b.Client.GetEpisode(ctx, broadcastId, e)
		if err != nil {
			return graph.Id{}, err
		}
		combined = append(combined, chunk...)
		if e > newest {
			newest = e
		}
	}

	if len(combined) > 0 {
		if err := b.Tx.Import(combined, namespace); err != nil {
			return graph.Id{}, err
		}
	}

	if err := store.PutSubscribedBroadcast(broadcastId, graph.SubscribedBroadcast{
		BroadcastId: broadcastId,
		Namespace:   namespace,
		LastUpdated: newest,
	}); err != nil {
		return graph.Id{}, err
	}
	return namespace, nil
}

// UpdateBroadcasts implements update_broadcasts(id): every owned broadcast
// whose exported set intersects descendants_until_links(id) and that has
// not expired gets republished; expired ones are dropped.
//
// Pushes run sequentially rather than "in parallel" per spec.md's prose:
// §5 fixes a single-threaded cooperative scheduling model for this system,
// so concurrent here means interleaved at suspension points, not concurrent
// mutation of the same transaction's pending writes.
func (b *Bridge) UpdateBroadcasts(ctx context.Context, id graph.Id, now int64) error {
	store := b.Tx.Store()
	descendants, err := b.Tx.Queries().Descendants(id, true)
	if err != nil {
		return err
	}
	inSubtree := make(map[graph.Id]bool, len(descendants)+1)
	inSubtree[id] = true
	for _, d := range descendants {
		inSubtree[d] = true
	}

	for _, root := range store.ListOwnedBroadcastIds() {
		owned, ok, err := store.GetOwnedBroadcast(root)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if owned.Expiration <= now {
			if err := store.RemoveOwnedBroadcast(root); err != nil {
				return err
			}
			continue
		}
		if !intersects(owned.Exported, inSubtree) {
			continue
		}
		if err := b.PublishBroadcast(ctx, root); err != nil {
			return err
		}
	}
	return nil
}

func intersects(ids []graph.Id, set map[graph.Id]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// exportedIds is the id set export(id) would write: id itself plus every
// live descendant reachable through it.
func exportedIds(tx *db.Tx, id graph.Id) ([]graph.Id, error) {
	descendants, err := tx.Queries().Descendants(id, false)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Id, 0, len(descendants)+1)
	out = append(out, id)
	out = append(out, descendants...)
	return out, nil
}
