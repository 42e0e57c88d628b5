package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/soaringjerry/Vox/internal/onboarding"
)

func TestStateRelayPublishDoesNotBlock(t *testing.T) {
	r := NewStateRelay()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Publish(onboarding.State{Index: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a reader")
	}
}

func TestStateRelayDeliversLatest(t *testing.T) {
	r := NewStateRelay()
	r.Publish(onboarding.State{Index: 1})
	r.Publish(onboarding.State{Index: 3, Recording: true})

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan tea.Msg, 4)
	finished := make(chan struct{})
	go func() {
		r.Run(ctx, func(msg tea.Msg) { got <- msg })
		close(finished)
	}()

	select {
	case msg := <-got:
		sm, ok := msg.(StateMsg)
		if !ok || sm.State != (onboarding.State{Index: 3, Recording: true}) {
			t.Errorf("got %#v, want latest state", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no StateMsg delivered")
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	if len(got) != 0 {
		t.Errorf("superseded states were delivered: %d extra", len(got))
	}
}
