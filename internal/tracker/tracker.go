package tracker

import (
	"context"
	"fmt"
	"strings"
)

// PullRequest is a point-in-time snapshot of a remote pull request.
type PullRequest struct {
	Number int
	URL    string
	Title  string
	Body   string
	Author string
	Labels []string
	Open   bool
	Merged bool
}

// Client defines the capabilities gitvote needs from an issue tracker.
// All calls are remote and independently failable; "not found" is reported
// as a nil result, not an error.
type Client interface {
	// PullRequest fetches a PR by repo ("owner/name") and number.
	// Returns (nil, nil) if the PR does not exist.
	PullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
	// AddLabels attaches labels to a PR.
	AddLabels(ctx context.Context, repo string, number int, labels []string) error
	// RemoveLabel detaches a label from a PR. Removing a label that is not
	// attached succeeds.
	RemoveLabel(ctx context.Context, repo string, number int, label string) error
}

// splitRepo splits an "owner/name" repo reference.
func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repo %q, want owner/name", repo)
	}
	return owner, name, nil
}
