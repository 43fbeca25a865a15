package predicate

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownOp = errors.New("predicate: unknown operator")

// Op is a comparison operator in a column-vs-constant predicate.
type Op uint8

const (
	Equals Op = iota
	GreaterThan
	LessThan
	LessThanOrEq
	GreaterThanOrEq
	Like
	NotEquals
)

var opNames = [...]string{
	Equals:          "=",
	GreaterThan:     ">",
	LessThan:        "<",
	LessThanOrEq:    "<=",
	GreaterThanOrEq: ">=",
	Like:            "LIKE",
	NotEquals:       "<>",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

func (o Op) Valid() bool { return int(o) < len(opNames) }

// ParseOp accepts the SQL spelling of an operator ("!=" is an alias of "<>").
func ParseOp(s string) (Op, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "=", "==":
		return Equals, nil
	case ">":
		return GreaterThan, nil
	case "<":
		return LessThan, nil
	case "<=":
		return LessThanOrEq, nil
	case ">=":
		return GreaterThanOrEq, nil
	case "LIKE":
		return Like, nil
	case "<>", "!=":
		return NotEquals, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, s)
}
