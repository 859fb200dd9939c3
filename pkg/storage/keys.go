package storage

import (
	"fmt"
	"strings"
)

const (
	keyUser  = "user"
	keyTheme = "theme"
)

// ParseTheme accepts system, light or dark in any case.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return t, nil
	}
	return "", fmt.Errorf("invalid theme %q (want system, light or dark)", s)
}
