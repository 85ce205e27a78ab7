package models

import "strings"

// labelAliases maps labels produced by older models to the canonical set
var labelAliases = map[string]Label{
	"NORMAL":        LabelNormal,
	"FUNCIONAL":     LabelNormal,
	"FUNCTIONAL":    LabelNormal,
	"OK":            LabelNormal,
	"AMBIENT":       LabelAmbient,
	"AMBIENTE":      LabelAmbient,
	"BACKGROUND":    LabelAmbient,
	"FAULT":         LabelFault,
	"DISFUNCIONAL":  LabelFault,
	"DYSFUNCTIONAL": LabelFault,
	"FAILURE":       LabelFault,
	"ERROR":         LabelError,
}

// ParseLabel normalizes a raw classifier label.
// - trims and upper-cases
// - resolves known aliases
// - maps ERROR_* and anything unknown to LabelError
func ParseLabel(raw string) Label {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if l, ok := labelAliases[s]; ok {
		return l
	}
	return LabelError
}
