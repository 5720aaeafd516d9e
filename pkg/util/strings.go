package util

import (
    "strconv"
    "strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}

// ParseBoolDefault parses string to bool or returns default if empty/invalid.
func ParseBoolDefault(s string, def bool) bool {
    if s == "" {
        return def
    }
    v, err := strconv.ParseBool(strings.TrimSpace(s))
    if err != nil {
        return def
    }
    return v
}

// SplitList splits a comma separated list, dropping blank items.
func SplitList(s string) []string {
    var out []string
    for _, item := range strings.Split(s, ",") {
        if item = strings.TrimSpace(item); item != "" {
            out = append(out, item)
        }
    }
    return out
}
