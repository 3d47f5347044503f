package wire

// Command is the typed, client-side representation of one requested
// operation. Only the fields the operation uses are meaningful; the
// constructors below set exactly those. A Command is built per call and
// consumed by AppendCommand.
type Command struct {
	Op Op

	// Key is the cache key, for the key-addressed operations.
	Key string

	// Value is the payload of a set.
	Value []byte

	// TTL is an expiry in whole seconds for set and set-ttl; 0 means no
	// expiry.
	TTL uint32

	// Size is the target capacity in bytes for resize.
	Size uint64

	// Policy is the target policy for a policy command.
	Policy Policy

	// Token is the credential for an auth command.
	Token string
}

func NewPing() *Command    { return &Command{Op: OpPing} }
func NewVersion() *Command { return &Command{Op: OpVersion} }
func NewStatus() *Command  { return &Command{Op: OpStatus} }
func NewWipe() *Command    { return &Command{Op: OpWipe} }
func NewClear() *Command   { return &Command{Op: OpClear} }

func NewAuth(token string) *Command {
	return &Command{Op: OpAuth, Token: token}
}

func NewGet(key string) *Command {
	return &Command{Op: OpGet, Key: key}
}

func NewSet(key string, value []byte, ttl uint32) *Command {
	return &Command{Op: OpSet, Key: key, Value: value, TTL: ttl}
}

func NewDel(key string) *Command {
	return &Command{Op: OpDel, Key: key}
}

func NewHas(key string) *Command {
	return &Command{Op: OpHas, Key: key}
}

func NewPeek(key string) *Command {
	return &Command{Op: OpPeek, Key: key}
}

func NewSetTTL(key string, ttl uint32) *Command {
	return &Command{Op: OpSetTTL, Key: key, TTL: ttl}
}

func NewGetTTL(key string) *Command {
	return &Command{Op: OpGetTTL, Key: key}
}

func NewSizeOf(key string) *Command {
	return &Command{Op: OpSizeOf, Key: key}
}

func NewResize(size uint64) *Command {
	return &Command{Op: OpResize, Size: size}
}

func NewPolicy(policy Policy) *Command {
	return &Command{Op: OpPolicy, Policy: policy}
}

// Shape returns the success payload shape of the response to this command.
func (c *Command) Shape() Shape {
	switch c.Op {
	case OpPing, OpVersion, OpGet, OpPeek:
		return ShapeValue
	case OpHas:
		return ShapeBool
	case OpSizeOf:
		return ShapeSize
	case OpGetTTL:
		return ShapeTTL
	case OpStatus:
		return ShapeStatus
	default:
		return ShapeAck
	}
}

// keyed reports whether the operation addresses a single key.
func (o Op) keyed() bool {
	switch o {
	case OpGet, OpSet, OpDel, OpHas, OpPeek, OpSetTTL, OpGetTTL, OpSizeOf:
		return true
	}
	return false
}

// ValidateCommand checks a command for basic well-formedness before any
// encoding is attempted. Violations are *ArgumentError; nothing has been
// written to the wire.
func ValidateCommand(c *Command) error {
	if c == nil {
		return &ArgumentError{Message: "nil command"}
	}

	if c.Op >= opSentinel {
		return &ArgumentError{Message: "unknown operation"}
	}

	if c.Op.keyed() && c.Key == "" {
		return &ArgumentError{Message: "empty key"}
	}
	if len(c.Key) > MaxFieldLength {
		return &ArgumentError{Message: "key too long"}
	}
	if len(c.Value) > MaxFieldLength {
		return &ArgumentError{Message: "value too long"}
	}

	if c.Op == OpAuth && c.Token == "" {
		return &ArgumentError{Message: "empty auth token"}
	}
	if len(c.Token) > MaxFieldLength {
		return &ArgumentError{Message: "auth token too long"}
	}

	return nil
}
