package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// The engine supports the RFC 5545 subset that makes sense for delivery
// scheduling: FREQ (DAILY and coarser), INTERVAL, COUNT, UNTIL, BYDAY,
// BYMONTHDAY and BYMONTH. Sub-daily frequencies and the positional/seconds
// level modifiers are rejected as unsupported.
var (
	ErrMalformed   = errors.New("recurrence rule is malformed")
	ErrUnsupported = errors.New("recurrence rule uses an unsupported feature")
)

// Rule is a parsed recurrence rule anchored at a subscription's start date.
// It is immutable and safe for concurrent use.
type Rule struct {
	text string
	rr   *rrule.RRule
}

// Parse validates the rule text and anchors it at start (DTSTART).
func Parse(text string, start time.Time) (*Rule, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrMalformed)
	}
	if !strings.Contains(strings.ToUpper(trimmed), "FREQ=") {
		return nil, fmt.Errorf("%w: FREQ is required", ErrMalformed)
	}

	opt, err := rrule.StrToROption(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := checkSupported(opt); err != nil {
		return nil, err
	}

	opt.Dtstart = start
	rr, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Rule{text: trimmed, rr: rr}, nil
}

// Validate reports whether the rule text would parse, without anchoring it.
func Validate(text string) error {
	_, err := Parse(text, time.Unix(0, 0).UTC())
	return err
}

func checkSupported(opt *rrule.ROption) error {
	if opt.Freq > rrule.DAILY {
		return fmt.Errorf("%w: sub-daily frequency", ErrUnsupported)
	}
	if len(opt.Bysetpos) > 0 {
		return fmt.Errorf("%w: BYSETPOS", ErrUnsupported)
	}
	if len(opt.Byyearday) > 0 {
		return fmt.Errorf("%w: BYYEARDAY", ErrUnsupported)
	}
	if len(opt.Byweekno) > 0 {
		return fmt.Errorf("%w: BYWEEKNO", ErrUnsupported)
	}
	if len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return fmt.Errorf("%w: sub-daily BYxxx modifier", ErrUnsupported)
	}
	if len(opt.Byeaster) > 0 {
		return fmt.Errorf("%w: BYEASTER", ErrUnsupported)
	}
	return nil
}

// Text returns the original rule text.
func (r *Rule) Text() string {
	return r.text
}

// NextOccurrence returns the earliest occurrence strictly after the given
// instant, or false when the rule is exhausted (COUNT reached or UNTIL
// passed).
func (r *Rule) NextOccurrence(after time.Time) (time.Time, bool) {
	next := r.rr.After(after, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// FirstOccurrence returns the earliest occurrence at-or-after the given
// instant, or false when the rule yields none.
func (r *Rule) FirstOccurrence(from time.Time) (time.Time, bool) {
	first := r.rr.After(from, true)
	if first.IsZero() {
		return time.Time{}, false
	}
	return first, true
}
