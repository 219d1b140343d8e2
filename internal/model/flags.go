package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FlagSet is the fixed-shape per-session feature configuration. It is a
// struct of four named booleans rather than an open map, so a flag can never
// be "missing": a zero FlagSet simply has every feature off.
type FlagSet struct {
	AutoChat       bool `json:"autoChat"`
	AntiCall       bool `json:"antiCall"`
	ViewOnceBypass bool `json:"viewOnceBypass"`
	AntiDelete     bool `json:"antiDelete"`
}

const (
	FlagAutoChat       = "autoChat"
	FlagAntiCall       = "antiCall"
	FlagViewOnceBypass = "viewOnceBypass"
	FlagAntiDelete     = "antiDelete"
)

// FlagNames lists the recognized flag names in display order.
var FlagNames = []string{FlagAutoChat, FlagAntiCall, FlagViewOnceBypass, FlagAntiDelete}

// Set assigns the named flag. It reports false for an unrecognized name and
// leaves the set unchanged in that case.
func (f *FlagSet) Set(name string, on bool) bool {
	switch name {
	case FlagAutoChat:
		f.AutoChat = on
	case FlagAntiCall:
		f.AntiCall = on
	case FlagViewOnceBypass:
		f.ViewOnceBypass = on
	case FlagAntiDelete:
		f.AntiDelete = on
	default:
		return false
	}
	return true
}

// Map returns the flag set as a map keyed by flag name.
func (f FlagSet) Map() map[string]bool {
	return map[string]bool{
		FlagAutoChat:       f.AutoChat,
		FlagAntiCall:       f.AntiCall,
		FlagViewOnceBypass: f.ViewOnceBypass,
		FlagAntiDelete:     f.AntiDelete,
	}
}

// Value stores the flag set as a JSON document. A nil pointer maps to NULL so
// partial upserts can leave the stored flags untouched.
func (f *FlagSet) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan reads the flag set back from its JSON column. Keys absent from the
// stored document come back false, never as an error.
func (f *FlagSet) Scan(src any) error {
	if src == nil {
		*f = FlagSet{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported flags column type %T", src)
	}
}
