package criteria

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/filter"
	"metaquery/internal/metadata"
)

// ReservedParams are query parameters that belong to paging and are
// ignored by Parse.
var ReservedParams = map[string]bool{
	"page":      true,
	"size":      true,
	"sort":      true,
	"offset":    true,
	"limit":     true,
	"eagerload": true,
}

// DistinctParam is the query parameter holding the distinct flag.
const DistinctParam = "distinct"

// Parse builds criteria from "<key>.<operation>=<value>" parameters, e.g.
//
//	id.greaterThan=5&status.in=AVAILABLE,RESTRICTED&productId.specified=false&distinct=true
//
// in/notIn take comma-separated lists and may repeat; an empty value is an
// empty set. Other operations take exactly one value. Operations on the same
// key are combined.
func Parse(def metadata.EntityDef, params url.Values) (*Criteria, error) {
	c := New(def)
	def = c.def

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pending := make(map[string]filter.Filter)
	for _, name := range names {
		values := params[name]
		if ReservedParams[name] {
			continue
		}
		if name == DistinctParam {
			if len(values) != 1 {
				return nil, apperror.NewInvalidFilter(DistinctParam, "", "distinct takes exactly one value")
			}
			b, err := strconv.ParseBool(values[0])
			if err != nil {
				return nil, apperror.NewTypeMismatch(DistinctParam, "", string(filter.TypeBool), values[0]).WithCause(err)
			}
			c.SetDistinct(b)
			continue
		}

		key, opName, ok := cutLast(name, ".")
		if !ok {
			return nil, apperror.NewUnknownField(def.Name, name)
		}
		t, ok := def.TypeOf(key)
		if !ok {
			return nil, apperror.NewUnknownField(def.Name, key)
		}
		op, err := filter.ParseOp(opName)
		if err != nil {
			return nil, apperror.NewInvalidFilter(key, opName, err.Error())
		}

		operand, err := parseOperand(key, op, t, values)
		if err != nil {
			return nil, err
		}
		f := pending[key]
		if err := f.Set(op, operand); err != nil {
			return nil, apperror.NewInvalidFilter(key, string(op), err.Error())
		}
		pending[key] = f
	}

	for _, key := range def.Keys() {
		if f, ok := pending[key]; ok {
			if err := c.Set(key, f); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func parseOperand(key string, op filter.Op, t filter.ValueType, values []string) (any, error) {
	switch op {
	case filter.OpIn, filter.OpNotIn:
		list := make([]any, 0, len(values))
		for _, raw := range values {
			if raw == "" {
				continue
			}
			for _, part := range strings.Split(raw, ",") {
				v, err := parseScalar(key, op, t, strings.TrimSpace(part))
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
		}
		return list, nil
	}

	if len(values) != 1 {
		return nil, apperror.NewInvalidFilter(key, string(op), key+"."+string(op)+" takes exactly one value")
	}
	raw := values[0]
	switch op {
	case filter.OpSpecified:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperror.NewTypeMismatch(key, string(op), string(filter.TypeBool), raw).WithCause(err)
		}
		return b, nil
	case filter.OpContains, filter.OpNotContains:
		return raw, nil
	}
	return parseScalar(key, op, t, raw)
}

func parseScalar(key string, op filter.Op, t filter.ValueType, raw string) (any, error) {
	v, err := filter.ParseValue(t, raw)
	if err != nil {
		return nil, apperror.NewTypeMismatch(key, string(op), string(t), raw).WithCause(err)
	}
	return v, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// Values encodes c back into query parameters accepted by Parse.
// String members of in/notIn containing commas do not survive the round trip.
func (c *Criteria) Values() url.Values {
	out := url.Values{}
	for _, key := range c.Keys() {
		f := c.filters[key]
		t, _ := c.def.TypeOf(key)
		for _, op := range f.Ops() {
			v, _ := f.Get(op)
			name := key + "." + string(op)
			if list, ok := v.([]any); ok {
				parts := make([]string, len(list))
				for i, item := range list {
					parts[i] = formatParam(t, item)
				}
				out.Set(name, strings.Join(parts, ","))
				continue
			}
			out.Set(name, formatParam(t, v))
		}
	}
	if d, ok := c.Distinct(); ok {
		out.Set(DistinctParam, strconv.FormatBool(d))
	}
	return out
}

func formatParam(t filter.ValueType, v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		if t == filter.TypeDate {
			return x.Format(filter.DateLayout)
		}
		return x.Format(time.RFC3339Nano)
	}
	return filter.Format(v)
}
