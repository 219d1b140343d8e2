// Package feature holds the pure flag policy: computing configured defaults
// and normalizing arbitrary flag documents into a full four-flag set.
package feature

import (
	"github.com/dmsbot/session-server-go/internal/config"
	"github.com/dmsbot/session-server-go/internal/model"
)

// Defaults computes the flag set a freshly connected session starts with.
// Each configuration option enables its flag only when set to exactly "true";
// the config layer supplies the documented literals when an option is unset.
func Defaults(cfg *config.Config) model.FlagSet {
	return model.FlagSet{
		AutoChat:       cfg.DefaultAutoChat == "true",
		AntiCall:       cfg.DefaultAntiCall == "true",
		ViewOnceBypass: cfg.DefaultViewOnceBypass == "true",
		AntiDelete:     cfg.DefaultAntiDelete == "true",
	}
}

// Normalize coerces an arbitrary flag document into a full flag set. Every
// recognized key is truth-tested, missing keys become false, and extra keys
// are dropped. Total: there is no input for which it fails.
func Normalize(raw map[string]any) model.FlagSet {
	return model.FlagSet{
		AutoChat:       truthy(raw[model.FlagAutoChat]),
		AntiCall:       truthy(raw[model.FlagAntiCall]),
		ViewOnceBypass: truthy(raw[model.FlagViewOnceBypass]),
		AntiDelete:     truthy(raw[model.FlagAntiDelete]),
	}
}

// IsValidName reports whether name is one of the four recognized flags.
func IsValidName(name string) bool {
	for _, n := range model.FlagNames {
		if n == name {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
