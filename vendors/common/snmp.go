package common

import (
	"math"
	"strconv"
	"strings"
)

// SNMPInvalidValue is the magic value several OLTs report for an unreadable
// optical reading (ONU offline or no optics).
const SNMPInvalidValue int64 = 2147483647

// TrimOIDDot removes the leading dot gosnmp puts on returned OIDs
func TrimOIDDot(oid string) string {
	return strings.TrimPrefix(oid, ".")
}

// OIDSuffix returns the arcs of oid after root, or false when oid is not under root.
// Both arguments may carry a leading dot.
func OIDSuffix(oid, root string) (string, bool) {
	oid = TrimOIDDot(oid)
	root = TrimOIDDot(root)
	if !strings.HasPrefix(oid, root) {
		return "", false
	}
	rest := oid[len(root):]
	if rest == "" {
		return "", true
	}
	if rest[0] != '.' {
		return "", false
	}
	return rest[1:], true
}

// LastArcs returns the trailing n arcs of an OID index as integers
func LastArcs(index string, n int) ([]int, bool) {
	parts := strings.Split(TrimOIDDot(index), ".")
	if len(parts) < n || n <= 0 {
		return nil, false
	}
	out := make([]int, n)
	for i, p := range parts[len(parts)-n:] {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// ParseIntSNMPValue extracts an int64 from the numeric types gosnmp returns
// or from a decimal string.
func ParseIntSNMPValue(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []byte:
		return ParseIntSNMPValue(string(v))
	default:
		return 0, false
	}
}

// ParseUint64SNMPValue extracts a non-negative counter value
func ParseUint64SNMPValue(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case uint:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int32:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// ParseOpticalString parses readings such as "-28.530(dBm)" or "47.957(C)"
func ParseOpticalString(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if idx := strings.IndexAny(value, "( "); idx > 0 {
		value = value[:idx]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
