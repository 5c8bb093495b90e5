package cache

import "strings"

// Key identifies a cached detail response by corporate number.
type Key struct {
	CorporateNumber string
}

// String generates the Redis key.
// Format: gbiz:hojin:<corporate_number>
func (k Key) String() string {
	return "gbiz:hojin:" + strings.TrimSpace(k.CorporateNumber)
}
