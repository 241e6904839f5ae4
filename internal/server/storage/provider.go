package storage

import (
	"context"
	"fmt"
	"strconv"

	"adoptik/petfeed/internal/feed"
)

// FeedProvider serves feed pages straight from the database. It lets the
// feed core run in-process without the HTTP API.
type FeedProvider struct {
	repo     *Repository
	pageSize int
}

// NewFeedProvider returns a FeedProvider with pageSize items per page.
func NewFeedProvider(repo *Repository, pageSize int) *FeedProvider {
	return &FeedProvider{repo: repo, pageSize: pageSize}
}

// FetchPage implements feed.Provider.
func (p *FeedProvider) FetchPage(ctx context.Context, page int) ([]feed.VideoItem, error) {
	return p.repo.VideoPage(ctx, page, p.pageSize)
}

// React implements feed.Reactor.
func (p *FeedProvider) React(ctx context.Context, videoID string, reaction feed.Reaction) error {
	id, err := strconv.ParseInt(videoID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid video id %q: %w", videoID, err)
	}
	c, err := CounterFor(reaction)
	if err != nil {
		return err
	}
	return p.repo.IncrementCounter(ctx, id, c)
}

// CounterFor maps a feed reaction to the counter it increments.
func CounterFor(reaction feed.Reaction) (Counter, error) {
	switch reaction {
	case feed.ReactionLike:
		return CounterLikes, nil
	case feed.ReactionShare:
		return CounterShares, nil
	case feed.ReactionView:
		return CounterViews, nil
	default:
		return "", fmt.Errorf("unknown reaction %q", reaction)
	}
}
