package model

import (
	"errors"
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
//
// The forward path is Pending → Preparing → Delivered → Shipped. Shipped and
// Cancelled are terminal. Cancelled can only be reached from Pending or
// Preparing.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusDelivered OrderStatus = "Delivered"
	StatusShipped   OrderStatus = "Shipped"
	StatusCancelled OrderStatus = "Cancelled"
)

// ErrUnknownStatus is returned by ParseOrderStatus for strings outside the status space.
var ErrUnknownStatus = errors.New("unknown order status")

var allStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusDelivered, StatusShipped, StatusCancelled}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusDelivered, StatusCancelled},
	StatusDelivered: {StatusShipped},
}

// ParseOrderStatus maps s onto the status space ignoring case and surrounding space.
func ParseOrderStatus(s string) (OrderStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the five known statuses.
func (s OrderStatus) Valid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool { return s.Valid() && len(transitions[s]) == 0 }

func (s OrderStatus) String() string { return string(s) }

// CanTransition is the single transition table used by every view and by the
// order service before a status patch is sent.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step. The result
// is a fresh slice.
func NextStatuses(s OrderStatus) []OrderStatus {
	out := make([]OrderStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// ForwardNext returns the next status on the forward path, excluding Cancelled.
// ok is false for terminal statuses.
func ForwardNext(s OrderStatus) (next OrderStatus, ok bool) {
	for _, st := range transitions[s] {
		if st != StatusCancelled {
			return st, true
		}
	}
	return "", false
}
