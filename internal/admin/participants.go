// Package admin provides out-of-band participant administration.
//
// Removals go through the store like any other write, so connected boards
// receive delete notifications and drop the rows live.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ResetTimeout is the maximum duration for a removal run.
const ResetTimeout = 30 * time.Second

// Remover is the store surface administration needs.
type Remover interface {
	DeleteParticipant(ctx context.Context, id string) error
	DeleteAllParticipants(ctx context.Context) (int64, error)
}

// Participants removes participants from the store.
type Participants struct {
	Store Remover
}

type removeFn func(ctx context.Context) error

// Remove deletes the participants with the given ids in order and stops at
// the first failure. It returns how many were removed.
func (a *Participants) Remove(ctx context.Context, ids ...string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	removals := make([]removeFn, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		removals = append(removals, func(ctx context.Context) error {
			if err := a.Store.DeleteParticipant(ctx, id); err != nil {
				return fmt.Errorf("remove %s: %w", id, err)
			}
			slog.Info("participant removed", "participant_id", id)
			return nil
		})
	}
	return a.runAll(ctx, removals)
}

// ResetAll deletes every participant.
// This is a destructive operation - use with caution.
func (a *Participants) ResetAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	n, err := a.Store.DeleteAllParticipants(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset participants: %w", err)
	}
	slog.Info("participants reset", "removed", n)
	return n, nil
}

func (a *Participants) runAll(ctx context.Context, removals []removeFn) (int, error) {
	done := 0
	for _, remove := range removals {
		if err := remove(ctx); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
