package ir

import "strconv"

// OpKind identifies an operation. The set is closed: the printer, the
// verifier, and the lowering rules switch over it.
type OpKind uint8

const (
	OpInvalid OpKind = iota

	// Values
	OpConstant
	OpIsType
	OpCmpEq
	OpCmpEqStrict
	OpCmpNeq
	OpCmpNeqStrict
	OpCmpLt
	OpCmpLte
	OpCmpGt
	OpCmpGte
	OpAnd
	OpOr
	OpCons
	OpTuple
	OpMap
	OpTupleGet
	OpListHead
	OpListTail
	OpMapContains
	OpMapGet
	OpCast
	OpCall
	OpClosure
	OpUnpackEnv
	OpTraceConstruct

	// Terminators
	OpBr
	OpIf
	OpCondBr
	OpReturn
	OpUnreachable
	OpThrow
	OpStaticCall
	OpClosureCall
	OpMapUpdate
	OpBinaryStart
	OpBinaryPush
	OpBinaryFinish
	OpBinaryMatch
	OpReceiveStart
	OpReceiveWait
	OpReceiveDone
	OpTraceCapture
	OpLandingPad

	numOpKinds
)

var mnemonics = [numOpKinds]string{
	OpInvalid:        "invalid",
	OpConstant:       "constant",
	OpIsType:         "is_type",
	OpCmpEq:          "cmp.eq",
	OpCmpEqStrict:    "cmp.eq.strict",
	OpCmpNeq:         "cmp.neq",
	OpCmpNeqStrict:   "cmp.neq.strict",
	OpCmpLt:          "cmp.lt",
	OpCmpLte:         "cmp.lte",
	OpCmpGt:          "cmp.gt",
	OpCmpGte:         "cmp.gte",
	OpAnd:            "logical.and",
	OpOr:             "logical.or",
	OpCons:           "cons",
	OpTuple:          "tuple",
	OpMap:            "map",
	OpTupleGet:       "tuple.get",
	OpListHead:       "list.head",
	OpListTail:       "list.tail",
	OpMapContains:    "map.contains",
	OpMapGet:         "map.get",
	OpBinaryMatch:    "binary.match",
	OpCast:           "cast",
	OpCall:           "call",
	OpClosure:        "closure",
	OpUnpackEnv:      "unpack_env",
	OpTraceConstruct: "trace.construct",
	OpBr:             "br",
	OpIf:             "if",
	OpCondBr:         "cond_br",
	OpReturn:         "return",
	OpUnreachable:    "unreachable",
	OpThrow:          "throw",
	OpStaticCall:     "call.static",
	OpClosureCall:    "call.closure",
	OpMapUpdate:      "map.update",
	OpBinaryStart:    "binary.start",
	OpBinaryPush:     "binary.push",
	OpBinaryFinish:   "binary.finish",
	OpReceiveStart:   "receive.start",
	OpReceiveWait:    "receive.wait",
	OpReceiveDone:    "receive.done",
	OpTraceCapture:   "trace.capture",
	OpLandingPad:     "landing_pad",
}

// String returns the printed mnemonic.
func (k OpKind) String() string {
	if k < numOpKinds {
		return mnemonics[k]
	}
	return "op(" + strconv.Itoa(int(k)) + ")"
}

// IsTerminator reports whether ops of this kind end a block.
func (k OpKind) IsTerminator() bool {
	return k >= OpBr && k < numOpKinds
}

// IsComparison reports whether k is one of the term comparisons.
func (k OpKind) IsComparison() bool {
	return k >= OpCmpEq && k <= OpCmpGte
}

// Role names the purpose of a successor edge.
type Role uint8

const (
	RoleDest Role = iota
	RoleTrue
	RoleFalse
	RoleOther
	RoleOK
	RoleErr
	RoleTimeout
	RoleCheck
)

var roleNames = [...]string{
	RoleDest:    "dest",
	RoleTrue:    "true",
	RoleFalse:   "false",
	RoleOther:   "other",
	RoleOK:      "ok",
	RoleErr:     "err",
	RoleTimeout: "timeout",
	RoleCheck:   "check",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "role(" + strconv.Itoa(int(r)) + ")"
}

// Successor is a control-flow edge. Args are the explicit values passed;
// the terminator may prepend implicit values (see Op.ImplicitArgs).
type Successor struct {
	Role  Role
	Block *Block
	Args  []*Value
}

// MapAction is the kind of one map_update entry.
type MapAction uint8

const (
	// MapInsert inserts the key or replaces its value (k => v).
	MapInsert MapAction = iota
	// MapUpdate replaces the value of an existing key and fails when the
	// key is absent (k := v).
	MapUpdate
	// MapRemove deletes a key. It takes no value operand.
	MapRemove
)

func (a MapAction) String() string {
	switch a {
	case MapUpdate:
		return "update"
	case MapRemove:
		return "remove"
	default:
		return "insert"
	}
}

// Operands returns how many operands the action consumes.
func (a MapAction) Operands() int {
	if a == MapRemove {
		return 1
	}
	return 2
}

// Op is a single operation. The payload fields are only meaningful for the
// kinds that use them: Attr for constants and folded binaries, Callee for
// calls and closures, TypeArg for is_type and cast, Index for tuple.get and
// unpack_env, Spec for binary segments, Actions for map_update, Dialect for
// landing pads.
type Op struct {
	Kind OpKind
	Loc  Location

	Attr    Attr
	Callee  string
	TypeArg *Type
	Index   int
	Tail    bool
	Spec    BinarySpec
	Actions []MapAction
	Dialect string

	operands []*Value
	results  []*Value
	succs    []*Successor
	block    *Block
}

// Block returns the block the op was appended to, or nil.
func (o *Op) Block() *Block { return o.block }

// Operands returns the operands. The slice must not be modified.
func (o *Op) Operands() []*Value { return o.operands }

// Operand returns operand i, or nil when out of range.
func (o *Op) Operand(i int) *Value {
	if i < 0 || i >= len(o.operands) {
		return nil
	}
	return o.operands[i]
}

// Results returns the result values.
func (o *Op) Results() []*Value { return o.results }

// Result returns result i, or nil when out of range.
func (o *Op) Result(i int) *Value {
	if i < 0 || i >= len(o.results) {
		return nil
	}
	return o.results[i]
}

// Successors returns the control-flow edges of a terminator.
func (o *Op) Successors() []*Successor { return o.succs }

// Successor returns the edge with the given role, or nil.
func (o *Op) Successor(r Role) *Successor {
	for _, s := range o.succs {
		if s.Role == r {
			return s
		}
	}
	return nil
}

// AddSuccessor appends a control-flow edge.
func (o *Op) AddSuccessor(r Role, b *Block, args ...*Value) *Successor {
	s := &Successor{Role: r, Block: b, Args: args}
	o.succs = append(o.succs, s)
	return s
}

// ImplicitArgs returns how many values the terminator passes to the given
// successor ahead of its explicit arguments.
func (o *Op) ImplicitArgs(r Role) int {
	switch o.Kind {
	case OpStaticCall, OpClosureCall, OpMapUpdate, OpBinaryPush:
		if r == RoleOK || r == RoleErr {
			return 1
		}
	case OpBinaryStart, OpBinaryFinish, OpReceiveStart, OpTraceCapture:
		if r == RoleDest {
			return 1
		}
	case OpReceiveWait:
		if r == RoleCheck {
			return 1
		}
	case OpBinaryMatch:
		if r == RoleOK {
			return 2
		}
	case OpLandingPad:
		if r == RoleErr {
			return 3
		}
	}
	return 0
}
