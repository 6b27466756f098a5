// Package mock simulates routers and OLTs in memory.
// It backs "mock" protocol profiles and the tests of the packages above it.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/types"
)

// Router simulates a RouterOS device holding menu tables such as
// /ppp/secret and /ppp/active. Commands are path/print, path/add,
// path/set and path/remove; anything else is recorded and returns no rows.
type Router struct {
	name string

	mu          sync.Mutex
	tables      map[string][]map[string]string
	nextID      int
	cmdHistory  []string
	dials       int
	dialErrs    []error
	runErrs     []error
	delay       time.Duration
	inflight    int
	maxInflight int
}

// NewRouter creates a simulated router with identity and resource tables
func NewRouter(name string) *Router {
	r := &Router{
		name:   name,
		tables: make(map[string][]map[string]string),
		nextID: 1,
	}
	r.tables["/system/identity"] = []map[string]string{{"name": name}}
	r.tables["/system/resource"] = []map[string]string{{
		"uptime":       "1w2d03:04:05",
		"version":      "7.14.3 (stable)",
		"board-name":   "CCR2004-1G-12S+2XS",
		"cpu-load":     "3",
		"free-memory":  "3670016000",
		"total-memory": "4294967296",
	}}
	return r
}

// AddRow inserts a row into a menu table and returns its .id
func (r *Router) AddRow(table string, row map[string]string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addRow(table, row)
}

func (r *Router) addRow(table string, row map[string]string) string {
	id := "*" + strings.ToUpper(strconv.FormatInt(int64(r.nextID), 16))
	r.nextID++
	cp := map[string]string{".id": id}
	for k, v := range row {
		cp[k] = v
	}
	r.tables[table] = append(r.tables[table], cp)
	return id
}

// Rows returns a copy of a menu table
func (r *Router) Rows(table string) []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyRows(r.tables[table])
}

// SetDelay makes every command take d, widening race windows in tests
func (r *Router) SetDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

// FailNextRuns scripts errors for the next commands, one per command
func (r *Router) FailNextRuns(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runErrs = append(r.runErrs, errs...)
}

// FailNextDials scripts errors for the next dials, one per dial
func (r *Router) FailNextDials(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialErrs = append(r.dialErrs, errs...)
}

// Dials returns how many sessions were opened
func (r *Router) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// MaxInflight returns the highest number of commands seen executing at once
func (r *Router) MaxInflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInflight
}

// GetCommandHistory returns the executed sentences joined by spaces
func (r *Router) GetCommandHistory() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := make([]string, len(r.cmdHistory))
	copy(history, r.cmdHistory)
	return history
}

// Dial implements routeros.Dialer
func (r *Router) Dial(ctx context.Context, p types.RouterProfile) (routeros.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dials++
	if len(r.dialErrs) > 0 {
		err := r.dialErrs[0]
		r.dialErrs = r.dialErrs[1:]
		return nil, err
	}
	return &routerConn{router: r}, nil
}

type routerConn struct {
	router *Router
	closed bool
}

func (c *routerConn) Close() error {
	c.closed = true
	return nil
}

func (c *routerConn) Run(sentence []string) ([]map[string]string, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: use of closed session", routeros.ErrDesync)
	}
	if len(sentence) == 0 {
		return nil, fmt.Errorf("%w: empty sentence", types.ErrValidation)
	}
	r := c.router

	r.mu.Lock()
	r.inflight++
	if r.inflight > r.maxInflight {
		r.maxInflight = r.inflight
	}
	delay := r.delay
	r.cmdHistory = append(r.cmdHistory, strings.Join(sentence, " "))
	var scripted error
	if len(r.runErrs) > 0 {
		scripted = r.runErrs[0]
		r.runErrs = r.runErrs[1:]
	}
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if scripted != nil {
		return nil, scripted
	}
	return r.exec(sentence)
}

// exec applies a sentence to the tables. Caller holds r.mu.
func (r *Router) exec(sentence []string) ([]map[string]string, error) {
	path := sentence[0]
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return nil, routeros.NewTrapError("0", "no such command prefix")
	}
	table, verb := path[:i], path[i+1:]

	attrs := make(map[string]string)
	query := make(map[string]string)
	var proplist []string
	for _, w := range sentence[1:] {
		if list, ok := strings.CutPrefix(strings.TrimPrefix(w, "="), ".proplist="); ok {
			proplist = strings.Split(list, ",")
			continue
		}
		prefix, k, v, ok := routeros.ParseWord(w)
		if !ok {
			continue
		}
		if prefix == '?' {
			query[k] = v
		} else {
			attrs[k] = v
		}
	}

	switch verb {
	case "print":
		var out []map[string]string
		for _, row := range r.tables[table] {
			if matches(row, query) {
				out = append(out, project(row, proplist))
			}
		}
		return out, nil
	case "add":
		id := r.addRow(table, attrs)
		return []map[string]string{{"ret": id}}, nil
	case "set":
		row := r.find(table, attrs)
		if row == nil {
			return nil, routeros.NewTrapError("0", "no such item")
		}
		for k, v := range attrs {
			if k == ".id" || k == "numbers" {
				continue
			}
			row[k] = v
		}
		return nil, nil
	case "remove":
		id := attrs[".id"]
		if id == "" {
			id = attrs["numbers"]
		}
		rows := r.tables[table]
		for j, row := range rows {
			if row[".id"] == id {
				r.tables[table] = append(rows[:j], rows[j+1:]...)
				return nil, nil
			}
		}
		return nil, routeros.NewTrapError("0", "no such item")
	default:
		return nil, nil
	}
}

func (r *Router) find(table string, attrs map[string]string) map[string]string {
	id := attrs[".id"]
	if id == "" {
		id = attrs["numbers"]
	}
	for _, row := range r.tables[table] {
		if row[".id"] == id || (id != "" && row["name"] == id) {
			return row
		}
	}
	return nil
}

func matches(row, query map[string]string) bool {
	for k, v := range query {
		if row[k] != v {
			return false
		}
	}
	return true
}

func project(row map[string]string, proplist []string) map[string]string {
	if len(proplist) == 0 {
		cp := make(map[string]string, len(row))
		for k, v := range row {
			cp[k] = v
		}
		return cp
	}
	cp := make(map[string]string, len(proplist))
	for _, k := range proplist {
		if v, ok := row[k]; ok {
			cp[k] = v
		}
	}
	return cp
}

func copyRows(rows []map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, project(row, nil))
	}
	return out
}

// Ensure routerConn implements routeros.Conn
var _ routeros.Conn = (*routerConn)(nil)
