// Package collation orders titles the way a reader of the site expects,
// using Unicode collation rather than byte order.
package collation

import (
	"sync"
	"sync/atomic"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLanguage is used until SetLanguage is called.
var DefaultLanguage = language.SimplifiedChinese

// A Collator keeps per-call scratch buffers, so each goroutine borrows one
// from the pool of the current locale.
type locale struct {
	tag  language.Tag
	pool sync.Pool
}

func newLocale(tag language.Tag) *locale {
	l := &locale{tag: tag}
	l.pool.New = func() any { return collate.New(tag) }
	return l
}

var current atomic.Pointer[locale]

func init() {
	current.Store(newLocale(DefaultLanguage))
}

// SetLanguage switches the collation locale for all later comparisons.
func SetLanguage(tag language.Tag) {
	current.Store(newLocale(tag))
}

// Language returns the current collation locale.
func Language() language.Tag {
	return current.Load().tag
}

// Compare returns -1, 0 or 1 comparing a and b in the site locale.
func Compare(a, b string) int {
	l := current.Load()
	c := l.pool.Get().(*collate.Collator)
	defer l.pool.Put(c)
	return c.CompareString(a, b)
}

// Dated orders two dated entries: newer dates first, then titles ascending.
// Empty dates sort after every non-empty date.
func Dated(aDate, aTitle, bDate, bTitle string) int {
	switch {
	case aDate != "" && bDate != "" && aDate != bDate:
		if aDate > bDate {
			return -1
		}
		return 1
	case aDate != "" && bDate == "":
		return -1
	case aDate == "" && bDate != "":
		return 1
	}
	return Compare(aTitle, bTitle)
}
