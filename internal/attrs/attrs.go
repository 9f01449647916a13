// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/staranto/swcache/internal/config"
)

var lengthRegex = regexp.MustCompile(`-?\d+`)

// Attr is one column of listing output. Key is a gjson path into each record.
type Attr struct {
	Key string
	// Include is false for attrs that only exist for filtering and sorting.
	Include bool
	// OutputKey names the column and the key in json/yaml output.
	OutputKey string
	// TransformSpec letters: l/u case, t local time, a age, h human bytes, and
	// an optional length (negative keeps both ends).
	TransformSpec string
}

// Transform applies the TransformSpec to value.
func (a *Attr) Transform(value any) any {
	if strings.Contains(a.TransformSpec, "h") {
		if n, ok := value.(float64); ok && n >= 0 {
			return humanize.Bytes(uint64(n))
		}
	}

	result, ok := value.(string)
	if !ok {
		return value
	}

	if strings.Contains(a.TransformSpec, "a") {
		if t, err := time.Parse(time.RFC3339Nano, result); err == nil {
			return humanize.Time(t)
		}
	}

	if strings.ContainsAny(a.TransformSpec, "tT") {
		result = a.toLocal(result)
	}

	// The last case letter wins, so a per-attr spec beats a global one.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")
	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	match := lengthRegex.FindAllString(a.TransformSpec, -1)
	if len(match) == 0 {
		return result
	}
	l, _ := strconv.Atoi(match[len(match)-1])
	abs := int(math.Abs(float64(l)))
	if len(result) <= abs {
		return result
	}
	if l < 0 {
		keep := abs/2 - 1
		if keep < 1 {
			return result[:abs]
		}
		return result[:keep] + ".." + result[len(result)-keep:]
	}
	return result[:l]
}

// toLocal converts an RFC3339 timestamp to the configured timezone. Without
// one the value is returned untouched.
func (a *Attr) toLocal(value string) string {
	tz, _ := config.GetString("timezone", "")
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return value
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Debugf("unknown timezone %s", tz)
		return value
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		log.Debugf("not a timestamp: %s", value)
		return value
	}
	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

type AttrList []Attr

// String renders the list in --attrs syntax.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses a comma separated list of key[:output[:transform]] specs. A
// leading ! keeps the attr for filtering and sorting but hides it. The key *
// carries a transform applied to every attr.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

specloop:
	for _, spec := range strings.Split(value, ",") {
		fields := strings.Split(spec, ":")

		attr := Attr{Include: true}
		attr.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return fmt.Errorf("empty attribute in %q", value)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		switch {
		case len(fields) == 1:
			segments := strings.Split(attr.Key, ".")
			attr.OutputKey = segments[len(segments)-1]
		case strings.TrimSpace(fields[outputIdx]) != "":
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		default:
			attr.OutputKey = attr.Key
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		// Respecifying a known attr updates it in place.
		for i := range *a {
			if (*a)[i].Key == attr.Key || (*a)[i].OutputKey == attr.Key {
				(*a)[i].Include = attr.Include
				(*a)[i].OutputKey = attr.OutputKey
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the * transform to every attr.
func (a *AttrList) SetGlobalTransformSpec() {
	spec := ""
	for _, attr := range *a {
		if attr.Key == "*" {
			spec = attr.TransformSpec
			break
		}
	}
	if spec == "" {
		return
	}
	for i := range *a {
		if (*a)[i].Key == "*" {
			continue
		}
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}
}

func (a *AttrList) Type() string {
	return "list"
}
