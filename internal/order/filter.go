package order

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

var ErrBadFilter = errors.New("invalid filter parameter")

// Filter restricts an order listing by status and creation date range.
// UserID is set by the service for non-staff requesters, never from the
// query string.
type Filter struct {
	Status      Status
	CreatedFrom time.Time
	CreatedTo   time.Time
	UserID      uuid.UUID
}

func FilterFromQuery(q url.Values) (Filter, error) {
	var f Filter

	if raw := q.Get("status"); raw != "" {
		status := Status(strings.ToUpper(raw))
		if !status.Valid() {
			return Filter{}, fmt.Errorf("%w: unknown status %q", ErrBadFilter, raw)
		}
		f.Status = status
	}

	var err error
	if f.CreatedFrom, err = parseDate(q, "created_after"); err != nil {
		return Filter{}, err
	}
	if f.CreatedTo, err = parseDate(q, "created_before"); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func parseDate(q url.Values, key string) (time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp or YYYY-MM-DD date", ErrBadFilter, key)
}

// SQL renders the filter as a WHERE fragment over the orders table.
func (f Filter) SQL() (where string, args []any) {
	var conds []string

	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.CreatedFrom.IsZero() {
		args = append(args, f.CreatedFrom)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.CreatedTo.IsZero() {
		args = append(args, f.CreatedTo)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if f.UserID != uuid.Nil {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return where, args
}
