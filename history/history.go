// Package history persists report bundles per owner.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aouyang1/forecastd/report"
)

var (
	ErrInvalidOrder  = errors.New("invalid history order")
	ErrInvalidBundle = errors.New("bundle must have an id and owner")
)

// Order of history listings by creation time.
type Order string

const (
	OrderDesc Order = "desc"
	OrderAsc  Order = "asc"
)

// ParseOrder accepts asc or desc in any case. An empty string returns def.
func ParseOrder(s string, def Order) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case OrderAsc:
		return OrderAsc, nil
	case OrderDesc:
		return OrderDesc, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrInvalidOrder)
}

// Store saves bundles and lists them per owner. Writes for one owner are serialized.
type Store interface {
	report.Saver
	List(ctx context.Context, owner string, order Order) ([]report.Bundle, error)
	Ping(ctx context.Context) error
}

func validate(b *report.Bundle) error {
	if b == nil || b.ID == "" || b.Owner == "" {
		return ErrInvalidBundle
	}
	return nil
}

// sortBundles orders by creation time keeping insertion order for ties.
func sortBundles(bundles []report.Bundle, order Order) {
	sort.SliceStable(bundles, func(i, j int) bool {
		if order == OrderAsc {
			return bundles[i].CreatedAt.Before(bundles[j].CreatedAt)
		}
		return bundles[i].CreatedAt.After(bundles[j].CreatedAt)
	})
}
