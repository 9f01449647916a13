// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/swcache/internal/store"
)

// Lifecycle event names.
const (
	EventInstall  = "install"
	EventActivate = "activate"
	EventFetch    = "fetch"
)

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyResponded = errors.New("fetch event already responded")
)

// State is the worker lifecycle state kept by the Host.
type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Source tells where a fetch was answered from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Event is delivered to listeners.
type Event interface {
	Type() string
}

// Listener handles one event. It must not block; long running work is
// handed back through WaitUntil or RespondWith.
type Listener func(ctx context.Context, ev Event)

// ExtendableEvent is used for install and activate. The event is not done
// until every function passed to WaitUntil has returned.
type ExtendableEvent struct {
	typ     string
	mu      sync.Mutex
	pending []func(context.Context) error
}

func (e *ExtendableEvent) Type() string { return e.typ }

// WaitUntil extends the event lifetime until fn returns. An error from fn
// fails the event.
func (e *ExtendableEvent) WaitUntil(fn func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, fn)
}

// settle runs every extension concurrently and returns the first error.
func (e *ExtendableEvent) settle(ctx context.Context) error {
	e.mu.Lock()
	pending := append([]func(context.Context) error(nil), e.pending...)
	e.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range pending {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}

// Responder produces the answer to a fetch event.
type Responder func(ctx context.Context) (*store.Response, Source, error)

// FetchEvent is dispatched for each request while the worker is active.
type FetchEvent struct {
	Request   *http.Request
	mu        sync.Mutex
	responder Responder
}

func (e *FetchEvent) Type() string { return EventFetch }

// RespondWith claims the request. Only the first call wins.
func (e *FetchEvent) RespondWith(r Responder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.responder != nil {
		return ErrAlreadyResponded
	}
	e.responder = r
	return nil
}

func (e *FetchEvent) claimed() Responder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.responder
}

// Fetcher performs live network fetches.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*store.Response, error)
}

// Host owns the event target and the lifecycle state of one worker.
type Host struct {
	net Fetcher

	mu        sync.RWMutex
	state     State
	listeners map[string][]Listener
}

func NewHost(net Fetcher) *Host {
	return &Host{net: net, listeners: make(map[string][]Listener)}
}

// AddEventListener registers l for the named event.
func (h *Host) AddEventListener(name string, l Listener) error {
	switch name {
	case EventInstall, EventActivate, EventFetch:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[name] = append(h.listeners[name], l)
	return nil
}

func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Host) transition(from, to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, h.state, from)
	}
	h.state = to
	return nil
}

func (h *Host) set(to State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = to
}

func (h *Host) listenersFor(name string) []Listener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Listener(nil), h.listeners[name]...)
}

// Install fires the install event once. If any extension fails the worker
// becomes redundant and can never be activated.
func (h *Host) Install(ctx context.Context) error {
	if err := h.transition(StateParsed, StateInstalling); err != nil {
		return err
	}

	ev := &ExtendableEvent{typ: EventInstall}
	for _, l := range h.listenersFor(EventInstall) {
		l(ctx, ev)
	}
	if err := ev.settle(ctx); err != nil {
		h.set(StateRedundant)
		log.WithError(err).Error("install failed, worker is redundant")
		return err
	}

	h.set(StateInstalled)
	log.Info("worker installed")
	return nil
}

// Activate fires the activate event. A failing extension is logged; the
// worker is activated regardless.
func (h *Host) Activate(ctx context.Context) error {
	if err := h.transition(StateInstalled, StateActivating); err != nil {
		return err
	}

	ev := &ExtendableEvent{typ: EventActivate}
	for _, l := range h.listenersFor(EventActivate) {
		l(ctx, ev)
	}
	if err := ev.settle(ctx); err != nil {
		log.WithError(err).Warn("activate handler failed")
	}

	h.set(StateActivated)
	log.Info("worker activated")
	return nil
}

// Start installs and then activates.
func (h *Host) Start(ctx context.Context) error {
	if err := h.Install(ctx); err != nil {
		return err
	}
	return h.Activate(ctx)
}

// DispatchFetch routes a request through the fetch listeners. Until the
// worker is activated, and when no listener responds, the request goes
// straight to the network.
func (h *Host) DispatchFetch(ctx context.Context, req *http.Request) (*store.Response, Source, error) {
	if h.State() != StateActivated {
		resp, err := h.net.Fetch(ctx, req)
		return resp, SourceNetwork, err
	}

	ev := &FetchEvent{Request: req}
	for _, l := range h.listenersFor(EventFetch) {
		l(ctx, ev)
		if ev.claimed() != nil {
			break
		}
	}

	if r := ev.claimed(); r != nil {
		return r(ctx)
	}
	resp, err := h.net.Fetch(ctx, req)
	return resp, SourceNetwork, err
}
