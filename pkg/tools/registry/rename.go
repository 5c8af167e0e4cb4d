package registry

import (
	"log/slog"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/crowdit/crowdmcp/pkg/tools"
)

// Account describes how one account's copy of a tool set is named.
type Account struct {
	// From is the base name prefix, e.g. "digitalocean_".
	From string
	// Prefix replaces From, e.g. "crowdit_do_".
	Prefix string
	// Label is shown in titles and descriptions.
	Label string
}

// Rename returns a renamed copy of base for acct. base is not modified and
// handlers are carried over unchanged, so callers bind them to the account
// before renaming.
func Rename(base []tools.Tool, acct Account) []tools.Tool {
	from := withUnderscore(acct.From)
	to := withUnderscore(acct.Prefix)

	out := make([]tools.Tool, 0, len(base))
	for _, t := range base {
		c := t
		if t.InputSchema != nil {
			c.InputSchema = nil
			if err := deepcopy.Copy(&c.InputSchema, t.InputSchema); err != nil {
				slog.Warn("copying tool schema, sharing original", "tool", t.Name, "error", err)
				c.InputSchema = t.InputSchema
			}
		}
		if rest, ok := strings.CutPrefix(t.Name, from); ok {
			c.Name = to + rest
		}
		if acct.Label != "" {
			if c.Title != "" {
				c.Title = "[" + acct.Label + "] " + c.Title
			}
			c.Description += " (account: " + acct.Label + ")"
		}
		out = append(out, c)
	}
	return out
}

func withUnderscore(s string) string {
	if s == "" || strings.HasSuffix(s, "_") {
		return s
	}
	return s + "_"
}
