package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/visagevault/internal/database"
)

// ErrReviewDone is returned when a resolution is attempted with no cluster left
// or after the review was cancelled.
var ErrReviewDone = errors.New("no cluster under review")

// Outcome is how a cluster was resolved.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
)

// ParseOutcome converts user input into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeAccepted, OutcomeSkipped, OutcomeRejected:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q (expected accepted, skipped or rejected)", s)
}

// Resolution records one decision.
type Resolution struct {
	ClusterIndex int     `json:"cluster_index"`
	Outcome      Outcome `json:"outcome"`
	IdentityID   int64   `json:"identity_id,omitempty"`
	Faces        int     `json:"faces"`
}

// Summary describes the state of a review session.
type Summary struct {
	Total       int          `json:"total"`
	Accepted    int          `json:"accepted"`
	Skipped     int          `json:"skipped"`
	Rejected    int          `json:"rejected"`
	Remaining   int          `json:"remaining"`
	Cancelled   bool         `json:"cancelled"`
	Resolutions []Resolution `json:"resolutions"`
}

// ReviewStore is the catalog access a review needs.
type ReviewStore interface {
	AssignIdentity(ctx context.Context, faceIDs []int64, identityID int64) error
	SetFacesDeleted(ctx context.Context, faceIDs []int64, deleted bool) error
	EnsureIdentity(ctx context.Context, name string) (*database.Identity, error)
	GetIdentity(ctx context.Context, id int64) (*database.Identity, error)
}

// Review walks clusters one at a time. Every resolution is committed to the
// store before the next cluster is presented, so cancelling keeps earlier
// decisions. A failed store call leaves the current cluster in place.
type Review struct {
	mu        sync.Mutex
	store     ReviewStore
	clusters  []Cluster
	pos       int
	cancelled bool
	summary   Summary
}

// NewReview starts a session over clusters in their given order.
func NewReview(store ReviewStore, clusters []Cluster) *Review {
	return &Review{
		store:    store,
		clusters: clusters,
		summary:  Summary{Total: len(clusters), Resolutions: []Resolution{}},
	}
}

// Current returns the cluster awaiting a decision.
func (r *Review) Current() (Cluster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || r.pos >= len(r.clusters) {
		return Cluster{}, false
	}
	return r.clusters[r.pos], true
}

// Position returns the 1-based index of the current cluster and the total.
func (r *Review) Position() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos + 1, len(r.clusters)
}

// Done reports whether no decision is pending.
func (r *Review) Done() bool {
	_, ok := r.Current()
	return !ok
}

// current must be called with r.mu held.
func (r *Review) current() (Cluster, error) {
	if r.cancelled || r.pos >= len(r.clusters) {
		return Cluster{}, ErrReviewDone
	}
	return r.clusters[r.pos], nil
}

// advance must be called with r.mu held.
func (r *Review) advance(c Cluster, outcome Outcome, identityID int64) {
	switch outcome {
	case OutcomeAccepted:
		r.summary.Accepted++
	case OutcomeSkipped:
		r.summary.Skipped++
	case OutcomeRejected:
		r.summary.Rejected++
	}
	r.summary.Resolutions = append(r.summary.Resolutions, Resolution{
		ClusterIndex: c.Index,
		Outcome:      outcome,
		IdentityID:   identityID,
		Faces:        len(c.Faces),
	})
	r.pos++
}

// Accept labels every face of the current cluster with an existing identity
// and clears their tombstones.
func (r *Review) Accept(ctx context.Context, identityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.current()
	if err != nil {
		return err
	}
	if _, err := r.store.GetIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("identity %d: %w", identityID, err)
	}
	if err := r.store.AssignIdentity(ctx, c.FaceIDs(), identityID); err != nil {
		return fmt.Errorf("assign cluster %d: %w", c.Index, err)
	}
	r.advance(c, OutcomeAccepted, identityID)
	return nil
}

// AcceptNew labels the current cluster with the identity of that name,
// creating it unless an identity with the same normalized name exists.
func (r *Review) AcceptNew(ctx context.Context, name string) (*database.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.current()
	if err != nil {
		return nil, err
	}
	identity, err := r.store.EnsureIdentity(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", name, err)
	}
	if err := r.store.AssignIdentity(ctx, c.FaceIDs(), identity.ID); err != nil {
		return nil, fmt.Errorf("assign cluster %d: %w", c.Index, err)
	}
	r.advance(c, OutcomeAccepted, identity.ID)
	return identity, nil
}

// Skip leaves the current cluster untouched.
func (r *Review) Skip() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.current()
	if err != nil {
		return err
	}
	r.advance(c, OutcomeSkipped, 0)
	return nil
}

// Reject soft-deletes every face of the current cluster.
func (r *Review) Reject(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.current()
	if err != nil {
		return err
	}
	if err := r.store.SetFacesDeleted(ctx, c.FaceIDs(), true); err != nil {
		return fmt.Errorf("reject cluster %d: %w", c.Index, err)
	}
	r.advance(c, OutcomeRejected, 0)
	return nil
}

// Cancel abandons the clusters not yet resolved.
func (r *Review) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

// Summary returns the decisions made so far.
func (r *Review) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	s.Cancelled = r.cancelled
	s.Remaining = len(r.clusters) - r.pos
	s.Resolutions = append([]Resolution{}, r.summary.Resolutions...)
	return s
}
