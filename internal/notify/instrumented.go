// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/holoauth/internal/auth"
)

// Delivery outcomes recorded by Instrumented.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// Instrumented counts deliveries of the wrapped notifier by outcome.
type Instrumented struct {
	next    auth.Notifier
	counter *prometheus.CounterVec
}

// NewInstrumented wraps next. counter must have a single "outcome" label.
func NewInstrumented(next auth.Notifier, counter *prometheus.CounterVec) *Instrumented {
	return &Instrumented{next: next, counter: counter}
}

// Notify implements auth.Notifier.
func (n *Instrumented) Notify(ctx context.Context, email auth.Email, code auth.TwoFACode) error {
	err := n.next.Notify(ctx, email, code)
	if err != nil {
		n.counter.WithLabelValues(OutcomeFailed).Inc()
		//nolint:wrapcheck // the wrapped notifier already returns coded errors
		return err
	}
	n.counter.WithLabelValues(OutcomeDelivered).Inc()
	return nil
}
