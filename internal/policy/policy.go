package policy

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MaxMessageBytes    = 4 * 1024
	MaxPassphraseBytes = 32
	MaxLifetime        = 1440 * time.Minute

	DefaultExpireAmount = "15"
	DefaultExpireUnit   = "minutes"
)

// Violation is a user-facing rejection of a share request.
type Violation struct {
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

var (
	ErrMessageTooLong    = &Violation{"The message must be less than or equal to 4 kilobytes"}
	ErrPassphraseTooLong = &Violation{"The passphrase must be less than or equal to 32 bytes"}
	ErrExpireNotPositive = &Violation{"The expire field must be positive"}
	ErrExpireTooLong     = &Violation{"Expire must be less than 1 day"}
	ErrExpireNotNumber   = &Violation{"The expire field must be a number"}
	ErrExpireUnit        = &Violation{"The expire unit must be seconds, minutes, hours or days"}
)

var units = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
}

// Validate checks a share request and returns the first violated rule, or
// nil. Lengths are measured in bytes.
func Validate(message, passphrase []byte, ttl time.Duration) error {
	switch {
	case len(passphrase) > MaxPassphraseBytes:
		return ErrPassphraseTooLong
	case len(message) > MaxMessageBytes:
		return ErrMessageTooLong
	case ttl <= 0:
		return ErrExpireNotPositive
	case ttl > MaxLifetime:
		return ErrExpireTooLong
	}
	return nil
}

// ParseExpire turns the amount/unit pair of the share form into a duration.
// Blank fields take the form defaults. Only malformed input is rejected here;
// bounds are left to Validate.
func ParseExpire(amount, unit string) (time.Duration, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		amount = DefaultExpireAmount
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = DefaultExpireUnit
	}

	per, ok := units[unit]
	if !ok {
		return 0, ErrExpireUnit
	}

	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, ErrExpireNotNumber
		}
		n = math.MaxInt64
		if strings.HasPrefix(amount, "-") {
			n = math.MinInt64
		}
	}

	// Clamp before multiplying so huge amounts cannot wrap into range.
	// Validate reports the bound that was broken.
	switch {
	case n <= 0:
		return -per, nil
	case n > int64(MaxLifetime/per):
		return MaxLifetime + per, nil
	}

	return time.Duration(n) * per, nil
}
