// Package routeros is the RouterOS management transport.
//
// A Conn runs one API sentence at a time and returns the !re rows of the
// reply. The wire protocol correlates replies to requests by tag, so a Conn
// must never be used by two goroutines at once; the router package enforces
// that with one worker per router.
package routeros

//go:generate mockgen -destination=mock_conn.go -package=routeros github.com/nanoncore/nano-ctlplane/drivers/routeros Conn

import (
	"context"
	"fmt"
	"strings"

	"github.com/nanoncore/nano-ctlplane/types"
)

// Conn is one authenticated management session with a router
type Conn interface {
	// Run executes a sentence. sentence[0] is the command path, the rest are
	// attribute (=k=v), query (?k=v) or API (.tag, .proplist) words.
	Run(sentence []string) ([]map[string]string, error)
	Close() error
}

// Dialer opens a Conn for a router profile
type Dialer func(ctx context.Context, profile types.RouterProfile) (Conn, error)

// Attr builds an =key=value attribute word
func Attr(key, value string) string {
	return "=" + key + "=" + value
}

// Query builds a ?key=value query word
func Query(key, value string) string {
	return "?" + key + "=" + value
}

// ID addresses an existing record by its server-assigned identifier
func ID(id string) string {
	return "=.id=" + id
}

// Proplist limits the returned properties
func Proplist(fields ...string) string {
	return "=.proplist=" + strings.Join(fields, ",")
}

// Sentence normalizes a command path and checks every parameter is a
// protocol word.
func Sentence(path string, params ...string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return nil, &types.ValidationError{Field: "path"}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.ReplaceAll(path, " ", "/")

	out := make([]string, 0, len(params)+1)
	out = append(out, path)
	for _, p := range params {
		if p == "" {
			continue
		}
		switch p[0] {
		case '=', '?', '.':
		default:
			return nil, fmt.Errorf("%w: parameter %q is not an attribute or query word", types.ErrValidation, p)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseWord splits an attribute or query word into key and value
func ParseWord(word string) (prefix byte, key, value string, ok bool) {
	if len(word) < 2 {
		return 0, "", "", false
	}
	prefix = word[0]
	rest := word[1:]
	if prefix != '=' && prefix != '?' {
		return 0, "", "", false
	}
	// query words may have no value: ?disabled
	i := strings.IndexByte(rest, '=')
	if i < 0 {
		return prefix, rest, "", prefix == '?'
	}
	return prefix, rest[:i], rest[i+1:], i > 0
}
