package pin

import "errors"

const pinLength = 6

var (
	// ErrPolicyLength is an exported constant or variable used by the identity engine.
	ErrPolicyLength = errors.New("pin must be exactly 6 digits")
	// ErrPolicyRepeatedDigit is an exported constant or variable used by the identity engine.
	ErrPolicyRepeatedDigit = errors.New("pin cannot be a single repeated digit")
	// ErrPolicySequentialRun is an exported constant or variable used by the identity engine.
	ErrPolicySequentialRun = errors.New("pin cannot be a sequential run")
	// ErrPolicyRepeatedPattern is an exported constant or variable used by the identity engine.
	ErrPolicyRepeatedPattern = errors.New("pin cannot be a repeated pattern")
)

// ValidatePolicy checks the PIN complexity rules: exactly six digits, not a
// single repeated digit, not a strictly ascending or descending run, and not
// a short repeated pattern (ababab, abcabc, aabbcc).
//
// ValidatePolicy may return an error when input validation, dependency calls, or security checks fail.
// ValidatePolicy does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ValidatePolicy(pin string) error {
	if len(pin) != pinLength {
		return ErrPolicyLength
	}
	for i := 0; i < pinLength; i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrPolicyLength
		}
	}

	if allSame(pin) {
		return ErrPolicyRepeatedDigit
	}
	if isRun(pin, 1) || isRun(pin, -1) {
		return ErrPolicySequentialRun
	}
	if hasPeriod(pin, 2) || hasPeriod(pin, 3) || isDoubledDigits(pin) {
		return ErrPolicyRepeatedPattern
	}

	return nil
}

func allSame(pin string) bool {
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			return false
		}
	}
	return true
}

func isRun(pin string, step int) bool {
	for i := 1; i < len(pin); i++ {
		if int(pin[i])-int(pin[i-1]) != step {
			return false
		}
	}
	return true
}

// hasPeriod reports whether the PIN repeats with the given period, covering
// 121212 (period 2) and 123123 (period 3).
func hasPeriod(pin string, period int) bool {
	for i := period; i < len(pin); i++ {
		if pin[i] != pin[i-period] {
			return false
		}
	}
	return true
}

// isDoubledDigits matches the aabbcc shape (112233).
func isDoubledDigits(pin string) bool {
	return pin[0] == pin[1] && pin[2] == pin[3] && pin[4] == pin[5]
}
