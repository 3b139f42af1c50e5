// Package cache provides the disk-persisted, incrementally extended record
// store backing the pagination iterators. Each store holds the ordered
// records of one logical query, identified by a deterministic fingerprint.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint is the identity of a query plus its filter set. Identical
// logical queries yield identical fingerprints regardless of the order
// parameters, list values or filters were supplied in; differing filter
// sets never collide.
type Fingerprint struct {
	// Requester is the identity the query runs as (the API username).
	Requester string

	// Endpoint is the full endpoint URL.
	Endpoint string

	// Params are the request parameters. List-valued parameters are
	// order-insensitive.
	Params url.Values

	// Filters are the canonical descriptors of every registered filter.
	Filters []string
}

// String generates the canonical fingerprint string.
// Format: requester_endpoint_key:v1,v2_..._filterDesc_...
func (f Fingerprint) String() string {
	parts := []string{f.Requester, f.Endpoint}

	keys := make([]string, 0, len(f.Params))
	for key := range f.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := append([]string(nil), f.Params[key]...)
		sort.Strings(values)
		parts = append(parts, key+":"+strings.Join(values, ","))
	}

	filters := append([]string(nil), f.Filters...)
	sort.Strings(filters)
	parts = append(parts, filters...)

	return strings.Join(parts, "_")
}

// Hash returns the md5 hex digest of the canonical string, used as the
// cache file name.
func (f Fingerprint) Hash() string {
	sum := md5.Sum([]byte(f.String()))
	return hex.EncodeToString(sum[:])
}
