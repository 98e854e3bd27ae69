package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SocietyRef carries the candidate spellings for one society reference.
// The Entity Resolver tries every candidate; first match wins.
type SocietyRef struct {
	Raw   string
	Codes []string // textual candidates against the society code column
	ID    uint     // numeric row-id candidate, 0 when the suffix is not numeric
}

// ParseSocietyRef normalizes a society spelling. The "S-" prefix is
// optional on the wire, so both spellings become candidates, plus the
// numeric row id when the suffix parses as one.
func ParseSocietyRef(raw string) SocietyRef {
	s := strings.TrimSpace(raw)
	bare := strings.TrimPrefix(s, "S-")
	ref := SocietyRef{Raw: s}
	if bare != s {
		ref.Codes = []string{s, bare}
	} else {
		ref.Codes = []string{s, "S-" + s}
	}
	if n, err := strconv.ParseUint(bare, 10, 32); err == nil && n > 0 {
		ref.ID = uint(n)
	}
	return ref
}

// MachineGrammar selects which historical machine-id grammar applies.
// The grammar is configured per endpoint, never inferred from content.
type MachineGrammar int

const (
	// GrammarNumericFirst treats the remainder after "M" as a row id when
	// it is numeric, and as an opaque identifier string otherwise.
	GrammarNumericFirst MachineGrammar = iota
	// GrammarLetterInfix canonicalizes the remainder after "M" as
	// letter + digits with leading zeros stripped (Mm00001 -> m1), or
	// plain digits with leading zeros stripped (M00001 -> 1).
	GrammarLetterInfix
)

// MachineRef carries the candidate identifiers for one machine reference.
type MachineRef struct {
	Raw   string
	ID    uint     // direct row-id candidate, 0 if none
	Codes []string // string candidates against the machine code column
}

var alnumRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ParseMachineRef normalizes a machine-id spelling under the given
// grammar. Every spelling on the wire must start with "M"; anything else
// is malformed.
func ParseMachineRef(raw string, g MachineGrammar) (MachineRef, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "M") {
		return MachineRef{}, fmt.Errorf("%w: machine id %q", ErrMalformed, raw)
	}
	rest := s[1:]
	if rest == "" || !alnumRe.MatchString(rest) {
		return MachineRef{}, fmt.Errorf("%w: machine id %q", ErrMalformed, raw)
	}

	ref := MachineRef{Raw: s}
	switch g {
	case GrammarLetterInfix:
		ref.Codes = []string{CanonicalMachineID(rest)}
	default: // GrammarNumericFirst
		if n, err := strconv.ParseUint(rest, 10, 32); err == nil && n > 0 {
			ref.ID = uint(n)
		}
		ref.Codes = appendUnique(ref.Codes, rest)
		ref.Codes = appendUnique(ref.Codes, stripLeadingZeros(rest))
	}
	return ref, nil
}

// CanonicalMachineID reduces a spelling (with the "M" prefix already
// removed) to its canonical form. The function is a no-op on its own
// output, so canonical forms stored in the database round-trip.
func CanonicalMachineID(rest string) string {
	if rest == "" {
		return rest
	}
	c := rest[0]
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return string(c) + stripLeadingZeros(rest[1:])
	}
	return stripLeadingZeros(rest)
}

func stripLeadingZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" && s != "" {
		return "0"
	}
	return t
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
