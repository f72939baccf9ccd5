// Package rfc9211 builds the Cache-Status response header field (RFC 9211).
package rfc9211

import (
	"strconv"
	"strings"
)

// HeaderName is the response header field defined by RFC 9211.
const HeaderName = "Cache-Status"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
)

// CacheStatus is a single list member of the Cache-Status field.
type CacheStatus struct {
	// Identifies the cache in the header value.
	Cache      string
	Status     Status
	FwdReason  FwdReason
	Stored     bool
	TimeToLive int
	Detail     string
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

func (cs CacheStatus) String() string {
	var b strings.Builder
	b.WriteString(cs.Cache)
	if cs.Status == StatusHit {
		b.WriteString("; hit")
	} else if cs.FwdReason != "" {
		b.WriteString("; fwd=")
		b.WriteString(string(cs.FwdReason))
	}
	if cs.Stored {
		b.WriteString("; stored")
	}
	if cs.TimeToLive > 0 {
		b.WriteString("; ttl=")
		b.WriteString(strconv.Itoa(cs.TimeToLive))
	}
	if cs.Detail != "" {
		b.WriteString("; detail=")
		b.WriteString(strconv.Quote(cs.Detail))
	}
	return b.String()
}
