package errcode

// Code is a stable, loggable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidConfig Code = "invalid_config"

	// Boot
	BootFailed    Code = "boot_failed"
	AlreadyBooted Code = "already_booted"

	// Peripheral power registry
	RegistrySealed Code = "registry_sealed"
	Duplicate      Code = "duplicate"
	UnknownPeriph  Code = "unknown_peripheral"

	// Scheduler
	QueueFull      Code = "queue_full"
	NotInitialised Code = "not_initialised"

	Error Code = "error" // generic fallback
)

// E keeps the failing operation and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s += " [" + e.Op + "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped *E by its code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Wrap attaches op context to err under code c. A nil err stays nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}
