// Package id generates prefixed identifiers for backend rows.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Row prefixes. A prefix makes ids self-describing in logs and realtime payloads.
const (
	PrefixUser       = "usr"
	PrefixSession    = "sess"
	PrefixCheckin    = "chk"
	PrefixLedger     = "pts"
	PrefixOrder      = "ord"
	PrefixSubmission = "sub"
	PrefixAttendance = "att"
	PrefixChat       = "msg"
	PrefixTeam       = "team"
	PrefixBooking    = "bkg"
	PrefixActivity   = "act"

	PrefixAuthUser     = "auth"
	PrefixRegistration = "reg"
	PrefixMember       = "mem"
	PrefixQuiz         = "quiz"
	PrefixChallenge    = "chl"
	PrefixEvent        = "evt"
	PrefixStore        = "str"
	PrefixProduct      = "prd"
	PrefixSport        = "spt"
	PrefixMatch        = "mat"
	PrefixMovie        = "mov"
	PrefixScreening    = "scr"
)

// ticketAlphabet omits characters that are easy to misread on a phone screen.
const ticketAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Generate creates a prefixed unique ID: prefix-nanoid (e.g. "ord-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Ticket returns a short code shown to staff when an order or booking is collected.
func Ticket() (string, error) {
	code, err := gonanoid.Generate(ticketAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("generate ticket: %w", err)
	}
	return code, nil
}
