package tracker

import (
	"context"
	"fmt"
	"sync"
)

// Issue wraps a single remote pull request with the snapshot fields the vote
// lifecycle reads and the label operations it writes. It owns no policy: the
// engine decides which labels move when.
//
// Label operations may be issued concurrently by a lifecycle transition, so
// the label set is guarded by a mutex.
type Issue struct {
	client Client
	repo   string

	mu     sync.Mutex
	labels map[string]bool

	Number      int
	URL         string
	Title       string
	Description string
	Author      string
	Exists      bool
}

// Resolve fetches the PR and wraps it. Returns (nil, nil) if the PR does not
// exist, so callers can fold absence into the cancellation path.
func Resolve(ctx context.Context, c Client, repo string, number int) (*Issue, error) {
	pr, err := c.PullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, nil
	}

	issue := &Issue{client: c, repo: repo}
	issue.apply(pr)
	return issue, nil
}

func (i *Issue) apply(pr *PullRequest) {
	i.Number = pr.Number
	i.URL = pr.URL
	i.Title = pr.Title
	i.Description = pr.Body
	i.Author = pr.Author

	labels := make(map[string]bool, len(pr.Labels))
	for _, l := range pr.Labels {
		labels[l] = true
	}
	i.mu.Lock()
	i.labels = labels
	i.mu.Unlock()

	// A merged or closed PR can no longer be voted on.
	i.Exists = pr.Open && !pr.Merged
}

// Repo returns the "owner/name" repo this issue belongs to.
func (i *Issue) Repo() string { return i.repo }

// HasLabel reports whether the snapshot carries the label.
func (i *Issue) HasLabel(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.labels[name]
}

// LabelNames returns a copy of the snapshot's label set.
func (i *Issue) LabelNames() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	names := make([]string, 0, len(i.labels))
	for l := range i.labels {
		names = append(names, l)
	}
	return names
}

// AddLabel attaches a label remotely and records it in the snapshot.
func (i *Issue) AddLabel(ctx context.Context, name string) error {
	if err := i.client.AddLabels(ctx, i.repo, i.Number, []string{name}); err != nil {
		return err
	}
	i.mu.Lock()
	i.labels[name] = true
	i.mu.Unlock()
	return nil
}

// RemoveLabel detaches a label remotely. Removing an absent label is a no-op,
// never an error.
func (i *Issue) RemoveLabel(ctx context.Context, name string) error {
	if err := i.client.RemoveLabel(ctx, i.repo, i.Number, name); err != nil {
		return err
	}
	i.mu.Lock()
	delete(i.labels, name)
	i.mu.Unlock()
	return nil
}

// Refresh re-fetches remote state. If the PR is gone, Exists flips to false
// and the other snapshot fields stay stale.
func (i *Issue) Refresh(ctx context.Context) error {
	pr, err := i.client.PullRequest(ctx, i.repo, i.Number)
	if err != nil {
		return err
	}
	if pr == nil {
		i.Exists = false
		return nil
	}
	i.apply(pr)
	return nil
}

func (i *Issue) String() string {
	return fmt.Sprintf("PR(repo=%s, number=%d, exists=%t)", i.repo, i.Number, i.Exists)
}
