// Package analytics provides privacy-first page-view counting.
package analytics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const saltKey = "hash_salt"

// salt is loaded once per process; HashIP uses it for every visit.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads the installation's IP-hashing salt, creating and storing
// one on first run. Call it before serving requests.
func InitSalt(ctx context.Context, store *Store) error {
	var err error
	salt.once.Do(func() {
		salt.value, err = loadSalt(ctx, store)
	})
	return err
}

func loadSalt(ctx context.Context, store *Store) (string, error) {
	v, err := store.GetSetting(ctx, saltKey)
	if err != nil {
		return "", fmt.Errorf("read hash salt: %w", err)
	}
	if v != "" {
		return v, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	v = hex.EncodeToString(b)
	if err := store.SetSetting(ctx, saltKey, v); err != nil {
		return "", fmt.Errorf("store hash salt: %w", err)
	}
	return v, nil
}

// Visit represents a single page view.
type Visit struct {
	IPHash    string
	Browser   string
	OS        string
	Device    string
	Path      string
	Timestamp time.Time
}

// Stats holds aggregated page views for a period.
type Stats struct {
	Period         string      `json:"period"`
	Days           int         `json:"days"`
	TotalViews     int         `json:"total_views"`
	UniqueVisitors int         `json:"unique_visitors"`
	TopPages       []PageStat  `json:"top_pages"`
	DailyViews     []DailyView `json:"daily_views"`
}

// PageStat represents page view statistics.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DailyView represents views per day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// HashIP returns the first 16 hex characters of sha256(salt + ip). Raw
// addresses are never stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(salt.value + ip))
	return hex.EncodeToString(sum[:])[:16]
}

type uaRule struct {
	name    string
	markers []string
}

// Rules are checked in order: Edge and Opera also claim "chrome", Android
// claims "linux" and iPad claims "mobile".
var (
	browserRules = []uaRule{
		{"Firefox", []string{"firefox"}},
		{"Opera", []string{"opera", "opr"}},
		{"Edge", []string{"edg"}},
		{"Chrome", []string{"chrome"}},
		{"Safari", []string{"safari"}},
	}
	osRules = []uaRule{
		{"Windows", []string{"windows"}},
		{"Android", []string{"android"}},
		{"iOS", []string{"iphone", "ipad"}},
		{"macOS", []string{"macintosh", "mac os"}},
		{"Linux", []string{"linux"}},
	}
	deviceRules = []uaRule{
		{"Tablet", []string{"tablet", "ipad"}},
		{"Mobile", []string{"mobile"}},
	}
)

func classify(ua string, rules []uaRule, fallback string) string {
	for _, r := range rules {
		for _, m := range r.markers {
			if strings.Contains(ua, m) {
				return r.name
			}
		}
	}
	return fallback
}

// ParseUserAgent reduces a User-Agent to coarse browser, OS and device
// families.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)
	return classify(ua, browserRules, "Other"),
		classify(ua, osRules, "Other"),
		classify(ua, deviceRules, "Desktop")
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"yandex", "baidu", "facebookexternalhit", "headless",
	"curl/", "wget/", "python-requests", "go-http-client",
}

// IsBot reports whether ua looks like a crawler or a script. An empty
// User-Agent counts as a bot.
func IsBot(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	return ua == "" || classify(ua, []uaRule{{"bot", botMarkers}}, "") != ""
}
