// Package diskerr defines the closed set of error codes every operation in
// this module can return. It is a closed enumeration, not an open error
// type hierarchy: callers may safely switch over the full set of Code
// values without a default case ever being reachable for an error that
// originated inside this module.
package diskerr

// Code is a disk-operation result. The zero value, Success, is not itself
// returned as an error by any function in this module — functions that
// succeed return a nil error — but it is part of the enumeration so that
// code comparing against a stored Code has a defined "no error" value.
type Code int

const (
	Success Code = iota
	BadParam
	MisAligned
	OutOfRange
	NoSpace
	NoMem
	ReadFailure
	WriteFailure
	EraseFailure
)

var names = [...]string{
	Success:      "success",
	BadParam:     "bad parameter",
	MisAligned:   "misaligned access",
	OutOfRange:   "out of range",
	NoSpace:      "no space",
	NoMem:        "out of memory",
	ReadFailure:  "read failure",
	WriteFailure: "write failure",
	EraseFailure: "erase failure",
}

func (c Code) String() string {
	if int(c) < 0 || int(c) >= len(names) {
		return "unknown error"
	}
	return names[c]
}

func (c Code) Error() string {
	return c.String()
}

// Is reports whether target is this same Code. errors.Is calls it on each
// error in a wrap chain, so callers can write
// errors.Is(err, diskerr.OutOfRange) against an error that may have been
// wrapped with github.com/pkg/errors.
func (c Code) Is(target error) bool {
	t, ok := target.(Code)
	return ok && t == c
}
