package engine

import (
	"strings"

	"golang.org/x/text/cases"
)

// キー名
const (
	KeyAny        = "any"
	KeySpace      = "space"
	KeyUpArrow    = "up arrow"
	KeyDownArrow  = "down arrow"
	KeyLeftArrow  = "left arrow"
	KeyRightArrow = "right arrow"
)

var keyFolder = cases.Fold()

var keyAliases = map[string]string{
	"arrowup":    KeyUpArrow,
	"up":         KeyUpArrow,
	"arrowdown":  KeyDownArrow,
	"down":       KeyDownArrow,
	"arrowleft":  KeyLeftArrow,
	"left":       KeyLeftArrow,
	"arrowright": KeyRightArrow,
	"right":      KeyRightArrow,
}

// NormalizeKey はキー名をイベントブロックの KEY_OPTION と比較できる形にする
func NormalizeKey(name string) string {
	if name == " " {
		return KeySpace
	}
	k := keyFolder.String(strings.TrimSpace(name))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}
