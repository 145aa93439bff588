/*
Package native describes the boundary between jsbind and a JavaScript engine.

An engine exposes its values through opaque handles that are only meaningful inside the Env
that produced them. Every operation reports a Status instead of panicking so the binding layer
can translate failures into Go errors. Implementations are not safe for concurrent use; the
binding layer guarantees that a single goroutine drives each Env.
*/
package native

import "fmt"

// Handle is an opaque token for a JS value inside one Env. Zero is never a valid handle.
type Handle uintptr

// HandleScope identifies an open handle scope.
type HandleScope uintptr

// Ref identifies a strong reference held by the engine on behalf of the host.
type Ref uintptr

// Deferred identifies the resolve/reject pair of a promise created by the host.
type Deferred uintptr

// Status is the result code of every engine call.
type Status int

const (
	OK Status = iota
	InvalidArg
	ObjectExpected
	StringExpected
	NameExpected
	FunctionExpected
	NumberExpected
	BooleanExpected
	ArrayExpected
	GenericFailure
	PendingException
	EscapeCalledTwice
	HandleScopeMismatch
	Closing
)

var statusNames = [...]string{
	OK:                  "ok",
	InvalidArg:          "invalid argument",
	ObjectExpected:      "object expected",
	StringExpected:      "string expected",
	NameExpected:        "string or symbol expected",
	FunctionExpected:    "function expected",
	NumberExpected:      "number expected",
	BooleanExpected:     "boolean expected",
	ArrayExpected:       "array expected",
	GenericFailure:      "generic failure",
	PendingException:    "pending exception",
	EscapeCalledTwice:   "escape called twice",
	HandleScopeMismatch: "handle scope mismatch",
	Closing:             "environment closing",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ValueType is the result of a typeof query.
type ValueType int

const (
	Undefined ValueType = iota
	Null
	Boolean
	Number
	String
	Symbol
	Object
	Function
	BigInt
	External
)

var valueTypeNames = [...]string{
	Undefined: "undefined",
	Null:      "null",
	Boolean:   "boolean",
	Number:    "number",
	String:    "string",
	Symbol:    "symbol",
	Object:    "object",
	Function:  "function",
	BigInt:    "bigint",
	External:  "external",
}

func (t ValueType) String() string {
	if t >= 0 && int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// CallbackInfo describes one invocation of a host function.
type CallbackInfo interface {
	This() Handle
	Args() []Handle
	// Data is the token the function was created with.
	Data() uintptr
}

// Callback is the single trampoline signature engines call back into. A zero result means
// undefined. The callback reports failures by leaving an exception pending on the Env.
type Callback func(env Env, info CallbackInfo) Handle

// TaskPoster hands work from the engine to the host thread. It returns false when the host
// can no longer run tasks.
type TaskPoster func(task func()) bool

// Printer receives console output produced by scripts.
type Printer interface {
	Log(string)
	Warn(string)
	Error(string)
}

// Options configure a new Env.
type Options struct {
	// MaxCallStackSize limits script recursion; zero keeps the engine default.
	MaxCallStackSize int
	// Console installs a console global writing to the printer when non-nil.
	Console Printer
}

// Factory creates an engine environment.
type Factory func(opts Options) (Env, error)

// Env is one engine realm. Handles minted by an Env live until the handle scope that was
// innermost at creation time is closed.
type Env interface {
	OpenHandleScope() (HandleScope, Status)
	CloseHandleScope(scope HandleScope) Status
	// OpenEscapableHandleScope reserves one slot in the enclosing scope for EscapeHandle.
	OpenEscapableHandleScope() (HandleScope, Status)
	CloseEscapableHandleScope(scope HandleScope) Status
	EscapeHandle(scope HandleScope, h Handle) (Handle, Status)

	GetUndefined() (Handle, Status)
	GetNull() (Handle, Status)
	GetGlobal() (Handle, Status)
	GetBoolean(b bool) (Handle, Status)

	CreateNumber(f float64) (Handle, Status)
	CreateString(s string) (Handle, Status)
	CreateStringUTF16(s []uint16) (Handle, Status)
	CreateObject() (Handle, Status)
	CreateArray(length int) (Handle, Status)
	CreateSymbol(description string) (Handle, Status)
	CreateError(name, message string) (Handle, Status)
	CreateFunction(name string, cb Callback, data uintptr) (Handle, Status)
	CreateExternal(data uintptr) (Handle, Status)
	CreateArrayBuffer(data []byte) (Handle, Status)
	CreatePromise() (Deferred, Handle, Status)
	ResolveDeferred(d Deferred, value Handle) Status
	RejectDeferred(d Deferred, reason Handle) Status

	TypeOf(h Handle) (ValueType, Status)
	GetValueBool(h Handle) (bool, Status)
	GetValueDouble(h Handle) (float64, Status)
	GetValueString(h Handle) (string, Status)
	GetValueStringUTF16(h Handle) ([]uint16, Status)
	GetValueExternal(h Handle) (uintptr, Status)
	GetArrayBufferBytes(h Handle) ([]byte, Status)
	GetArrayLength(h Handle) (uint32, Status)
	GetPropertyNames(obj Handle) ([]string, Status)
	CoerceToString(h Handle) (Handle, Status)

	IsArray(h Handle) (bool, Status)
	IsError(h Handle) (bool, Status)
	IsPromise(h Handle) (bool, Status)
	StrictEquals(a, b Handle) (bool, Status)

	GetProperty(obj, key Handle) (Handle, Status)
	SetProperty(obj, key, value Handle) Status
	HasProperty(obj, key Handle) (bool, Status)
	DeleteProperty(obj, key Handle) (bool, Status)
	GetNamedProperty(obj Handle, name string) (Handle, Status)
	SetNamedProperty(obj Handle, name string, value Handle) Status
	GetElement(obj Handle, index uint32) (Handle, Status)
	SetElement(obj Handle, index uint32, value Handle) Status

	CallFunction(recv, fn Handle, args []Handle) (Handle, Status)
	NewInstance(ctor Handle, args []Handle) (Handle, Status)
	RunScript(source, name string) (Handle, Status)

	Throw(h Handle) Status
	IsExceptionPending() bool
	GetAndClearLastException() (Handle, Status)

	CreateReference(h Handle) (Ref, Status)
	DeleteReference(ref Ref) Status
	GetReferenceValue(ref Ref) (Handle, Status)

	RunMicrotasks() Status
	SetTaskPoster(post TaskPoster)
	Close() Status
}
