// Package report composes price change notifications and fans them out to
// delivery channels.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
)

// Subject is the fixed notification subject.
const Subject = "Flight price change alert"

const bodyHeader = "Flight price changes:\n\n"

// Notification is a channel-neutral message.
type Notification struct {
	Subject     string
	Body        string
	Attachments []string // file paths, typically chart PNGs
}

// Compose builds a notification from the alert-worthy results. The bool is
// false when nothing changed and no notification should be sent.
func Compose(results []models.RouteResult, attachments []string) (Notification, bool) {
	var b strings.Builder
	b.WriteString(bodyHeader)

	alerts := 0
	for _, r := range results {
		if !r.AlertWorthy || r.Previous == nil {
			continue
		}
		alerts++
		fmt.Fprintf(&b, "%s on %s: %s (was %s)", r.Route.Label, r.Route.Date,
			r.Price.ComparisonDisplay(), r.Previous.ComparisonDisplay())
		if r.Price.Adjusted.Valid {
			fmt.Fprintf(&b, " [listed %s]", r.Price.Display())
		}
		if r.Price.Details != "" {
			fmt.Fprintf(&b, " - %s", r.Price.Details)
		}
		b.WriteString("\n")
	}
	if alerts == 0 {
		return Notification{}, false
	}

	return Notification{
		Subject:     Subject,
		Body:        b.String(),
		Attachments: attachments,
	}, true
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Delivery is the outcome of one channel.
type Delivery struct {
	Channel string
	Err     error
}

// Dispatcher sends a notification to every configured notifier in order.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher. Nil notifiers are dropped.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// Len returns the number of configured channels.
func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Dispatch sends n over every channel. A failing channel does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) []Delivery {
	deliveries := make([]Delivery, 0, len(d.notifiers))
	for _, notifier := range d.notifiers {
		err := notifier.Notify(ctx, n)
		if err != nil {
			logger.Error("Failed to send notification via %s: %v", notifier.Name(), err)
		} else {
			logger.Info("Notification sent via %s", notifier.Name())
		}
		deliveries = append(deliveries, Delivery{Channel: notifier.Name(), Err: err})
	}
	return deliveries
}
