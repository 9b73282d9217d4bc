// Package alert turns a fetched batch into the chat message and tracks its
// delivery.
package alert

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"

	"quotealert/internal/quote"
)

// DefaultMaxLen is Telegram's sendMessage text limit, in UTF-16 code units.
const DefaultMaxLen = 4096

const ellipsis = "…"

// Status is the delivery state of an alert.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	// StatusSkipped means no notifier was configured.
	StatusSkipped Status = "skipped"
)

// Record is one formatted alert. It is inserted as pending and updated once
// with the delivery outcome.
type Record struct {
	ID          uuid.UUID  `db:"id"`
	CycleID     uuid.UUID  `db:"cycle_id"`
	CreatedAt   time.Time  `db:"created_at"`
	Message     string     `db:"message"`
	Status      Status     `db:"status"`
	Error       string     `db:"error"`
	DeliveredAt *time.Time `db:"delivered_at"`
}

func NewRecord(cycleID uuid.UUID, message string, at time.Time) *Record {
	return &Record{
		ID:        uuid.New(),
		CycleID:   cycleID,
		CreatedAt: at.UTC(),
		Message:   message,
		Status:    StatusPending,
	}
}

// Format renders one line per symbol under a timestamp header. The result
// never exceeds maxLen UTF-16 code units; maxLen <= 0 means DefaultMaxLen.
func Format(results []quote.Result, at time.Time, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	var b strings.Builder
	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	fmt.Fprintf(&b, "Quotes %s (%d/%d)\n", at.Format("2006-01-02 15:04 MST"), ok, len(results))
	for _, r := range results {
		b.WriteString(line(r))
		b.WriteByte('\n')
	}
	return truncate(strings.TrimRight(b.String(), "\n"), maxLen)
}

func line(r quote.Result) string {
	if !r.OK() {
		kind := quote.KindTransport
		if r.Err != nil {
			kind = r.Err.Kind
		}
		return fmt.Sprintf("%s: unavailable (%s)", r.Symbol, kind)
	}
	q := r.Quote
	s := fmt.Sprintf("%s: %s vol %d", q.Symbol, q.LTP.String(), q.Volume)
	if oc := q.OptionChain; oc != nil {
		s += fmt.Sprintf(" | %s PCR %s ATM %s", oc.Expiry, oc.PCR.StringFixed(2), oc.ATMStrike.String())
		if !oc.ATMCallIV.IsZero() || !oc.ATMPutIV.IsZero() {
			s += fmt.Sprintf(" IV %s/%s", oc.ATMCallIV.StringFixed(1), oc.ATMPutIV.StringFixed(1))
		}
	}
	return s
}

// utf16Len counts s in UTF-16 code units, the unit Telegram measures
// message length in.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeLen(r)
	}
	return n
}

func runeLen(r rune) int {
	if l := utf16.RuneLen(r); l > 0 {
		return l
	}
	return 1 // invalid UTF-8 is sent as U+FFFD
}

// truncate cuts s to at most max UTF-16 code units, marking the cut with an
// ellipsis. Surrogate pairs are never split.
func truncate(s string, max int) string {
	if utf16Len(s) <= max {
		return s
	}
	suffix := ellipsis
	keep := max - utf16Len(ellipsis)
	if keep <= 0 {
		suffix, keep = "", max
	}
	n := 0
	for i, r := range s {
		if n+runeLen(r) > keep {
			return s[:i] + suffix
		}
		n += runeLen(r)
	}
	return s + suffix
}
