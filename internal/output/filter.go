// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/swcache/internal/attrs"
)

// filterRegex splits key, operand and target. Operands are = ^ ~ < > @ or /,
// each optionally negated with a leading !.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is one parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses spec. Malformed entries are logged and dropped. The
// delimiter is "," unless SWCACHE_FILTER_DELIM says otherwise.
func BuildFilters(spec string) []Filter {
	if spec == "" {
		return nil
	}

	delim := ","
	if d, ok := os.LookupEnv("SWCACHE_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	//nolint:prealloc
	var filters []Filter
	for _, s := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(s)
		if parts == nil || parts[1] == "" {
			log.Error("invalid filter: " + s)
			continue
		}
		op, negate := strings.CutPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     parts[1],
			Negate:  negate,
			Operand: op,
			Target:  parts[3],
		})
	}
	return filters
}

// Match reports whether value passes the filter.
func (f Filter) Match(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return f.matchString(v)
	case bool:
		return f.matchString(strconv.FormatBool(v))
	case float64:
		return f.matchNumber(v)
	case int:
		return f.matchNumber(float64(v))
	case int64:
		return f.matchNumber(float64(v))
	case []any, map[string]any:
		if f.Operand == "@" {
			return f.matchContains(v)
		}
	}
	log.Errorf("unsupported value for filter %s%s: %T", f.Key, f.Operand, value)
	return false
}

func (f Filter) matchString(value string) bool {
	var ok bool
	switch f.Operand {
	case "=":
		ok = value == f.Target
	case "~":
		ok = strings.EqualFold(value, f.Target)
	case "^":
		ok = strings.HasPrefix(value, f.Target)
	case ">":
		ok = value > f.Target
	case "<":
		ok = value < f.Target
	case "@":
		ok = strings.Contains(value, f.Target)
	case "/":
		re, err := regexp.Compile(f.Target)
		if err != nil {
			log.Error("invalid regex: " + f.Target)
			return false
		}
		ok = re.MatchString(value)
	default:
		log.Error("unsupported filter operand: " + f.Operand)
		return false
	}
	return ok != f.Negate
}

func (f Filter) matchNumber(value float64) bool {
	target, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		// Not a number, compare as text.
		return f.matchString(strconv.FormatFloat(value, 'f', -1, 64))
	}

	var ok bool
	switch f.Operand {
	case "=":
		ok = value == target
	case ">":
		ok = value > target
	case "<":
		ok = value < target
	default:
		return f.matchString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	return ok != f.Negate
}

func (f Filter) matchContains(value any) bool {
	found := false
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if fmt.Sprint(item) == f.Target {
				found = true
				break
			}
		}
	case map[string]any:
		_, found = v[f.Target]
	}
	return found != f.Negate
}

// FilterDataset keeps the candidates matching every filter in spec and
// projects each onto al. Transforms are left to the caller.
func FilterDataset(candidates gjson.Result, al attrs.AttrList, spec string) []map[string]any {
	filters := BuildFilters(spec)

	//nolint:prealloc
	var results []map[string]any
	for _, candidate := range candidates.Array() {
		if !applyFilters(candidate, al, filters) {
			continue
		}
		row := make(map[string]any, len(al))
		for _, attr := range al {
			if attr.Key == "*" {
				continue
			}
			row[attr.OutputKey] = candidate.Get(attr.Key).Value()
		}
		results = append(results, row)
	}
	return results
}

// applyFilters reports whether candidate passes every filter. A filter on an
// unknown attr is reported and ignored.
func applyFilters(candidate gjson.Result, al attrs.AttrList, filters []Filter) bool {
	for _, f := range filters {
		key := ""
		for _, attr := range al {
			if attr.OutputKey == f.Key {
				key = attr.Key
				break
			}
		}
		if key == "" {
			msg := fmt.Sprintf("filter key not found: %s", f.Key)
			log.Error(msg)
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
			continue
		}
		if !f.Match(candidate.Get(key).Value()) {
			return false
		}
	}
	return true
}
