package domain

import (
	"strings"
	"time"
)

// CollectionChecks is the storage namespace holding check records.
const CollectionChecks = "checks"

type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodDelete Method = "delete"
)

// RawCheck is a check record as it sits in storage. Nothing in it is trusted
// until it has been through the validator.
type RawCheck struct {
	ID             string  `json:"id"`
	OwnerContact   string  `json:"ownerContact"`
	Protocol       string  `json:"protocol"`
	Host           string  `json:"host"`
	Method         string  `json:"method"`
	AcceptedCodes  []int   `json:"acceptedCodes"`
	TimeoutSeconds float64 `json:"timeoutSeconds"`
	State          string  `json:"state,omitempty"`
	LastCheckedAt  int64   `json:"lastCheckedAt,omitempty"` // unix ms
}

// Check is a validated check. State and LastCheckedAt are nil until the
// check has been probed at least once.
type Check struct {
	ID             string
	OwnerContact   string
	Protocol       Protocol
	Host           string
	Method         Method
	AcceptedCodes  []int
	TimeoutSeconds int
	State          *State
	LastCheckedAt  *time.Time
}

// URL is the probe target, protocol://host.
func (c Check) URL() string {
	return string(c.Protocol) + "://" + c.Host
}

func (c Check) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HTTPMethod returns the method in the form net/http expects.
func (c Check) HTTPMethod() string {
	return strings.ToUpper(string(c.Method))
}

// Observe returns a copy of c carrying a new observation.
func (c Check) Observe(s State, at time.Time) Check {
	out := c
	out.AcceptedCodes = append([]int(nil), c.AcceptedCodes...)
	out.State = &s
	at = at.UTC()
	out.LastCheckedAt = &at
	return out
}

// Record converts c back into its storage shape.
func (c Check) Record() RawCheck {
	r := RawCheck{
		ID:             c.ID,
		OwnerContact:   c.OwnerContact,
		Protocol:       string(c.Protocol),
		Host:           c.Host,
		Method:         string(c.Method),
		AcceptedCodes:  append([]int(nil), c.AcceptedCodes...),
		TimeoutSeconds: float64(c.TimeoutSeconds),
	}
	if c.State != nil {
		r.State = string(*c.State)
	}
	if c.LastCheckedAt != nil {
		r.LastCheckedAt = c.LastCheckedAt.UnixMilli()
	}
	return r
}
