// Package pool holds sponsorship pools and their per-wallet usage.
//
// The whole collection is persisted as a single record, so every mutation
// replaces it atomically. Store is the only writer.
package pool

import (
	"slices"
	"time"
)

// Record is one sponsorship pool.
type Record struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	CreatorAddress string            `json:"creatorAddress"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        time.Time         `json:"endTime"`
	UsageCap       uint64            `json:"usageCap"`
	Whitelist      []string          `json:"whitelist"`
	Usage          map[string]uint64 `json:"usage"`
	WalletPath     string            `json:"walletPath"`
	WalletAddress  string            `json:"walletAddress"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// Clone returns a deep copy so callers never alias stored state.
func (r *Record) Clone() *Record {
	c := *r
	c.Whitelist = slices.Clone(r.Whitelist)
	c.Usage = make(map[string]uint64, len(r.Usage))
	for k, v := range r.Usage {
		c.Usage[k] = v
	}
	return &c
}

// ActiveAt reports whether t lies in [StartTime, EndTime].
func (r *Record) ActiveAt(t time.Time) bool {
	return !t.Before(r.StartTime) && !t.After(r.EndTime)
}

// Whitelisted reports whether address may spend from the pool.
func (r *Record) Whitelisted(address string) bool {
	return slices.Contains(r.Whitelist, address)
}

// UsageOf returns the recorded spend of address.
func (r *Record) UsageOf(address string) uint64 {
	return r.Usage[address]
}

// Remaining returns how much address may still spend.
func (r *Record) Remaining(address string) uint64 {
	used := r.Usage[address]
	if used >= r.UsageCap {
		return 0
	}
	return r.UsageCap - used
}

// Spec is the input to Store.Create.
type Spec struct {
	Name           string
	CreatorAddress string
	StartTime      time.Time
	EndTime        time.Time
	UsageCap       uint64
	Whitelist      []string
}

// Patch carries the optional fields of Store.Update. Nil means unchanged.
type Patch struct {
	StartTime *time.Time
	EndTime   *time.Time
	Whitelist []string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.Whitelist == nil
}

// Filter selects pools in List. Zero fields match everything.
type Filter struct {
	Creator  string
	ActiveAt time.Time
	Wallet   string
}

func (f Filter) match(r *Record) bool {
	if f.Creator != "" && r.CreatorAddress != f.Creator {
		return false
	}
	if !f.ActiveAt.IsZero() && !r.ActiveAt(f.ActiveAt) {
		return false
	}
	if f.Wallet != "" && !r.Whitelisted(f.Wallet) {
		return false
	}
	return true
}
