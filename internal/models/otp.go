package models

import (
	"strings"
	"time"
)

// OTPChannel is the contact channel being verified.
type OTPChannel string

const (
	OTPChannelMobile OTPChannel = "MOBILE"
	OTPChannelEmail  OTPChannel = "EMAIL"
)

// ParseOTPChannel accepts mobile/MOBILE/email/EMAIL.
func ParseOTPChannel(raw string) (OTPChannel, bool) {
	ch := OTPChannel(strings.ToUpper(strings.TrimSpace(raw)))
	switch ch {
	case OTPChannelMobile, OTPChannelEmail:
		return ch, true
	}
	return "", false
}

// OTPState of a channel challenge.
type OTPState string

const (
	OTPStateUnsent   OTPState = "UNSENT"
	OTPStateSent     OTPState = "SENT"
	OTPStateVerified OTPState = "VERIFIED"
	OTPStateLocked   OTPState = "LOCKED"
)

// OTPChallenge is the issued code for one application channel. It lives in Redis.
type OTPChallenge struct {
	ApplicationID string     `json:"applicationId"`
	Channel       OTPChannel `json:"channel"`
	Target        string     `json:"target"`
	State         OTPState   `json:"state"`
	CodeHash      string     `json:"codeHash"`
	Attempts      int        `json:"attempts"`
	SentAt        time.Time  `json:"sentAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	LockedAt      *time.Time `json:"lockedAt,omitempty"`
}

// ResendAfter is the earliest time a new code may be issued. A locked
// challenge restarts the cooldown from the moment it locked.
func (c *OTPChallenge) ResendAfter(cooldown time.Duration) time.Time {
	after := c.SentAt.Add(cooldown)
	if c.LockedAt != nil {
		if locked := c.LockedAt.Add(cooldown); locked.After(after) {
			after = locked
		}
	}
	return after
}

// Expired reports whether the code can no longer be used at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// OTPStatus is the client view of a channel.
type OTPStatus struct {
	Channel      OTPChannel `json:"channel"`
	State        OTPState   `json:"state"`
	Target       string     `json:"target,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	ResendAfter  *time.Time `json:"resendAfter,omitempty"`
	AttemptsLeft int        `json:"attemptsLeft"`
	Editable     bool       `json:"editable"`
}
