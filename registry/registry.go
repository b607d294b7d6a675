// Package registry keeps one body track per tracked identity.
//
// Registry reconciles the set of identities reported by an external body
// tracker with the tracks it holds: new identities get fresh tracks and
// vanished identities have their tracks closed and their resources released.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/milosgajdos/go-posetrack/kinematics"
	"github.com/milosgajdos/go-posetrack/track"
)

// ErrUnknown is returned when a frame is delivered to an untracked identity
var ErrUnknown = errors.New("unknown body")

// Kind is a lifecycle event kind
type Kind int

const (
	// Created is emitted when a track is created
	Created Kind = iota
	// Removed is emitted when a track is removed
	Removed
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Removed:
		return "removed"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a track lifecycle event
type Event struct {
	Kind Kind
	// ID is body identity
	ID string
	// Generated is true if the identity was generated locally
	Generated bool
}

// Listener is notified about lifecycle events once the registry
// has been updated. Listeners may call back into the registry.
type Listener func(Event)

// Factory creates tracks
type Factory func(id string) (*track.Track, error)

type entry struct {
	track  *track.Track
	handle kinematics.Handle
}

// Registry maps body identities to tracks.
// Frame delivery runs concurrently with other deliveries;
// reconciliation excludes every delivery.
type Registry struct {
	mu          sync.RWMutex
	tracks      map[string]*entry
	factory     Factory
	provisioner kinematics.Provisioner
	listener    Listener
	logger      *slog.Logger
}

// Option configures Registry
type Option func(*Registry)

// WithLogger sets logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithProvisioner sets per body resource provisioner
func WithProvisioner(p kinematics.Provisioner) Option {
	return func(r *Registry) {
		r.provisioner = p
	}
}

// WithListener sets lifecycle event listener
func WithListener(l Listener) Option {
	return func(r *Registry) {
		r.listener = l
	}
}

// New creates new Registry which creates tracks with f and returns it.
// It returns error if f is nil.
func New(f Factory, opts ...Option) (*Registry, error) {
	if f == nil {
		return nil, errors.New("nil track factory")
	}

	r := &Registry{
		tracks:      make(map[string]*entry),
		factory:     f,
		provisioner: kinematics.Nop{},
		logger:      slog.Default(),
	}

	for _, apply := range opts {
		apply(r)
	}

	return r, nil
}

// Diff splits identities into those only in next, those only in prev and those in both.
// Every returned slice is sorted and free of duplicates.
func Diff(prev, next []string) (added, removed, retained []string) {
	p := set(prev)
	n := set(next)

	for id := range n {
		if _, ok := p[id]; ok {
			retained = append(retained, id)
			continue
		}
		added = append(added, id)
	}

	for id := range p {
		if _, ok := n[id]; !ok {
			removed = append(removed, id)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(retained)

	return added, removed, retained
}

func set(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Reconcile makes the registry track exactly the identities in ids.
// Tracks of vanished identities are removed before new tracks are created.
// It returns the emitted lifecycle events. Failure to create a track is
// returned after the remaining identities have been reconciled.
func (r *Registry) Reconcile(ctx context.Context, ids []string) ([]Event, error) {
	events, err := r.reconcile(ctx, ids)
	r.notify(events)

	return events, err
}

func (r *Registry) reconcile(ctx context.Context, ids []string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []Event
	added, removed, _ := Diff(r.idsLocked(), ids)

	for _, id := range removed {
		events = append(events, r.removeLocked(ctx, id))
	}

	var errs []error
	for _, id := range added {
		ev, err := r.createLocked(ctx, id, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}

	return events, errors.Join(errs...)
}

// EnsureSingle makes the registry track exactly one body with a locally
// generated identity. An already tracked single body is kept.
// It returns the identity of the tracked body.
func (r *Registry) EnsureSingle(ctx context.Context) (string, []Event, error) {
	id, events, err := r.ensureSingle(ctx)
	r.notify(events)

	return id, events, err
}

func (r *Registry) ensureSingle(ctx context.Context) (string, []Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.idsLocked()
	if len(ids) == 1 {
		return ids[0], nil, nil
	}

	var events []Event
	for _, id := range ids {
		events = append(events, r.removeLocked(ctx, id))
	}

	id := GenerateID()
	ev, err := r.createLocked(ctx, id, true)
	if err != nil {
		return "", events, err
	}

	return id, append(events, ev), nil
}

// Deliver hands frame f to the track of body id.
// It returns ErrUnknown if id is not tracked.
func (r *Registry) Deliver(ctx context.Context, id string, f track.Frame) (*track.Output, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, id)
	}

	return e.track.OnFrame(ctx, f)
}

// IDs returns sorted tracked identities
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.idsLocked()
}

// Len returns the number of tracked bodies
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tracks)
}

// Close removes every track
func (r *Registry) Close(ctx context.Context) []Event {
	r.mu.Lock()
	var events []Event
	for _, id := range r.idsLocked() {
		events = append(events, r.removeLocked(ctx, id))
	}
	r.mu.Unlock()

	r.notify(events)

	return events
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.tracks))
	for id := range r.tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (r *Registry) createLocked(ctx context.Context, id string, generated bool) (Event, error) {
	t, err := r.factory(id)
	if err != nil {
		r.logger.Error("failed to create track", "body", id, "err", err)
		return Event{}, fmt.Errorf("create track %s: %w", id, err)
	}

	h, err := r.provisioner.Provision(ctx, t.Description())
	if err != nil {
		t.Close()
		r.logger.Error("failed to provision body", "body", id, "err", err)
		return Event{}, fmt.Errorf("provision body %s: %w", id, err)
	}

	r.tracks[id] = &entry{track: t, handle: h}
	r.logger.Info("created track", "body", id, "generated", generated)

	return Event{Kind: Created, ID: id, Generated: generated}, nil
}

// removeLocked closes the track of body id and releases its resources.
// Release failures are logged and do not stop the removal.
func (r *Registry) removeLocked(ctx context.Context, id string) Event {
	e := r.tracks[id]
	e.track.Close()

	if err := r.provisioner.Release(ctx, e.handle); err != nil {
		r.logger.Error("failed to release body", "body", id, "err", err)
	}

	delete(r.tracks, id)
	r.logger.Info("removed track", "body", id)

	return Event{Kind: Removed, ID: id}
}

// notify hands events to the listener in order.
// It must be called without holding the registry lock.
func (r *Registry) notify(events []Event) {
	if r.listener == nil {
		return
	}

	for _, ev := range events {
		r.listener(ev)
	}
}

// idLen is the length of generated identities
const idLen = 5

// GenerateID returns a random identity of lowercase letters
func GenerateID() string {
	u := uuid.New()

	var b strings.Builder
	for _, c := range u[:idLen] {
		b.WriteByte('a' + c%26)
	}

	return b.String()
}
