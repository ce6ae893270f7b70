package product

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrBadFilter = errors.New("invalid filter parameter")

// orderableFields is the allow-list for the ordering parameter. Anything
// outside it is rejected so clients cannot force sorts on unindexed columns.
var orderableFields = map[string]struct{}{
	"name":  {},
	"price": {},
	"stock": {},
}

// Filter describes a conjunctive product query. Zero values mean "no
// constraint"; InStock is a distinct predicate rather than a field filter so
// it composes independently of the price and search criteria.
type Filter struct {
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string
	InStock  bool
	Ordering string
	Limit    int
	Offset   int
}

// FilterFromQuery parses the list-endpoint query string.
func FilterFromQuery(q url.Values) (Filter, error) {
	var f Filter

	if raw := q.Get("min_price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: min_price must be a decimal", ErrBadFilter)
		}
		f.MinPrice = &d
	}
	if raw := q.Get("max_price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: max_price must be a decimal", ErrBadFilter)
		}
		f.MaxPrice = &d
	}

	f.Search = strings.TrimSpace(q.Get("search"))

	if raw := q.Get("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: in_stock must be a boolean", ErrBadFilter)
		}
		f.InStock = v
	}

	if ordering := q.Get("ordering"); ordering != "" {
		field := strings.TrimPrefix(ordering, "-")
		if _, ok := orderableFields[field]; !ok {
			return Filter{}, fmt.Errorf("%w: ordering by %q is not allowed", ErrBadFilter, field)
		}
		f.Ordering = ordering
	}

	var err error
	if f.Limit, err = parseNonNegativeInt(q, "limit"); err != nil {
		return Filter{}, err
	}
	if f.Offset, err = parseNonNegativeInt(q, "offset"); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func parseNonNegativeInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadFilter, key)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes pattern metacharacters so the search term matches
// literally inside the ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SQL renders the filter as a WHERE fragment with positional args and an
// ORDER BY column. The fragment is empty when nothing is constrained.
func (f Filter) SQL() (where string, orderBy string, args []any) {
	var conds []string

	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conds = append(conds, fmt.Sprintf("price >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}
	if f.Search != "" {
		// Exact match on name, case-insensitive substring on description.
		args = append(args, f.Search)
		nameArg := len(args)
		args = append(args, "%"+escapeLike(f.Search)+"%")
		descArg := len(args)
		conds = append(conds, fmt.Sprintf("(name = $%d OR description ILIKE $%d)", nameArg, descArg))
	}
	if f.InStock {
		conds = append(conds, "stock > 0")
	}

	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	orderBy = "id"
	if f.Ordering != "" {
		if field, ok := strings.CutPrefix(f.Ordering, "-"); ok {
			orderBy = field + " DESC"
		} else {
			orderBy = f.Ordering
		}
	}

	return where, orderBy, args
}
