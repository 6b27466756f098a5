package cli

import (
	"fmt"
	"strings"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// command is an API sentence rewritten as one console line
type command struct {
	line  string
	print bool
	add   bool
}

// translate rewrites an API sentence for the RouterOS console.
//
//	/ppp/active/print ?name=alice =.proplist=.id
//	  -> /ppp/active/print terse show-ids proplist=.id where name="alice"
//	/ppp/secret/set =.id=*1 =disabled=yes
//	  -> /ppp/secret/set numbers=*1 disabled="yes"
//	/ip/pool/add =name=p1
//	  -> :put [/ip/pool/add name="p1"]
//
// Only equality queries combine on the console; stack operators (?#) and
// absence tests (?-key) are rejected.
func translate(sentence []string) (command, error) {
	if len(sentence) == 0 {
		return command{}, &types.ValidationError{Field: "path"}
	}
	path := sentence[0]
	verb := path[strings.LastIndexByte(path, '/')+1:]

	cmd := command{print: verb == "print", add: verb == "add"}
	var args, where []string
	for _, word := range sentence[1:] {
		if strings.HasPrefix(word, ".") {
			// .tag and friends have no console equivalent
			continue
		}
		prefix, key, value, ok := routeros.ParseWord(word)
		if !ok {
			return command{}, fmt.Errorf("%w: cannot translate word %q", types.ErrValidation, word)
		}
		switch {
		case prefix == '?':
			if strings.HasPrefix(key, "#") || strings.HasPrefix(key, "-") || strings.HasPrefix(key, "<") || strings.HasPrefix(key, ">") {
				return command{}, fmt.Errorf("%w: query %q is not supported over ssh", types.ErrValidation, word)
			}
			if value == "" && !strings.Contains(word, "=") {
				where = append(where, key)
				continue
			}
			where = append(where, key+"="+quote(value))
		case key == ".proplist":
			args = append(args, "proplist="+value)
		case key == ".id":
			args = append(args, "numbers="+value)
		default:
			args = append(args, key+"="+quote(value))
		}
	}

	parts := []string{path}
	if cmd.print {
		parts = append(parts, "terse", "show-ids")
	}
	parts = append(parts, args...)
	if len(where) > 0 {
		if !cmd.print {
			return command{}, fmt.Errorf("%w: queries only apply to print", types.ErrValidation)
		}
		parts = append(parts, "where")
		parts = append(parts, strings.Join(where, " and "))
	}
	cmd.line = strings.Join(parts, " ")
	if cmd.add {
		cmd.line = ":put [" + cmd.line + "]"
	}
	return cmd, nil
}

// quote renders a console string literal
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

// consoleErrors are output fragments that mean the command was refused
var consoleErrors = []string{
	"failure:",
	"no such item",
	"bad command name",
	"expected end of command",
	"syntax error",
	"invalid value",
	"input does not match",
	"not enough permissions",
	"ambiguous value",
	"already have",
}

// consoleError returns a trap for refused commands, nil otherwise
func consoleError(output string) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "=") {
			// record output, not a console message
			continue
		}
		lower := strings.ToLower(line)
		for _, frag := range consoleErrors {
			if strings.Contains(lower, frag) {
				return routeros.NewTrapError("", strings.TrimPrefix(line, "failure: "))
			}
		}
	}
	return nil
}

// parseTerse reads "print terse show-ids" output. Each non-empty line is one
// record: an optional id or item number, optional flag letters, then
// key=value pairs whose values may be double-quoted.
func parseTerse(output string) []map[string]string {
	rows := make([]map[string]string, 0)
	for _, line := range strings.Split(common.StripANSI(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Flags:") || strings.HasPrefix(line, "Columns:") {
			continue
		}
		row := make(map[string]string)
		for i, tok := range splitTokens(line) {
			key, value, isPair := strings.Cut(tok, "=")
			if !isPair {
				if i == 0 && strings.HasPrefix(tok, "*") {
					row[".id"] = tok
				}
				// item numbers and flag letters
				continue
			}
			row[key] = unquote(value)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// splitTokens splits on spaces outside double quotes
func splitTokens(line string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quoted:
			cur.WriteRune(r)
			escaped = true
		case r == '"':
			cur.WriteRune(r)
			quoted = !quoted
		case r == ' ' && !quoted:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	r := strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\$`, `$`)
	return r.Replace(v[1 : len(v)-1])
}

// putResult reads the id printed by ":put [.../add ...]"
func putResult(output string) []map[string]string {
	for _, line := range strings.Split(common.StripANSI(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "*") {
			return []map[string]string{{"ret": line}}
		}
	}
	return []map[string]string{}
}
