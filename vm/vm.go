package vm

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("mia.vm")

// DefaultMaxFrames bounds the call stack depth.
const DefaultMaxFrames = 1024

// ctxCheckInterval is how many instructions run between context checks.
const ctxCheckInterval = 256

// Frame is the activation record of one chunk invocation. Locals, stack and
// instruction pointer belong to the frame alone.
type Frame struct {
	chunk    *Chunk
	ip       int
	locals   []Value // slot-indexed, grows on store, nil entries are unwritten
	stack    []Value
	captures []Value
}

func newFrame(chunk *Chunk, args, captures []Value) *Frame {
	size := chunk.LocalCount
	if len(args) > size {
		size = len(args)
	}
	locals := make([]Value, size)
	copy(locals, args)
	return &Frame{
		chunk:    chunk,
		locals:   locals,
		stack:    make([]Value, 0, 16),
		captures: captures,
	}
}

func (f *Frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return nil, ErrStackUnderflow
	}
	v := f.stack[n-1]
	f.stack[n-1] = nil
	f.stack = f.stack[:n-1]
	return v, nil
}

// popN pops n values and returns them in pop order: out[0] was on top.
func (f *Frame) popN(n int) ([]Value, error) {
	if n > len(f.stack) {
		return nil, fmt.Errorf("%w: need %d values, have %d", ErrStackUnderflow, n, len(f.stack))
	}
	out := make([]Value, n)
	top := len(f.stack) - 1
	for i := 0; i < n; i++ {
		out[i] = f.stack[top-i]
	}
	clear(f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

func (f *Frame) load(slot int) (Value, error) {
	if slot >= len(f.locals) || f.locals[slot] == nil {
		if name := f.chunk.varName(slot); name != "" {
			return nil, fmt.Errorf("%w: slot %d (%s)", ErrUninitializedSlot, slot, name)
		}
		return nil, fmt.Errorf("%w: slot %d", ErrUninitializedSlot, slot)
	}
	return f.locals[slot], nil
}

func (f *Frame) store(slot int, v Value) {
	if slot >= len(f.locals) {
		f.locals = append(f.locals, make([]Value, slot+1-len(f.locals))...)
	}
	f.locals[slot] = v
}

// VM executes compiled chunks. The call stack is owned by the VM: the last
// frame is the current one, a call appends a frame and a return removes it.
type VM struct {
	frames    []*Frame
	maxFrames int
	ctx       context.Context
	trace     bool
	steps     int
}

// Option configures a VM.
type Option func(*VM)

// WithMaxFrames sets the call depth limit.
func WithMaxFrames(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxFrames = n
		}
	}
}

// WithContext makes the run stop once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(vm *VM) { vm.ctx = ctx }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(trace bool) Option {
	return func(vm *VM) { vm.trace = trace }
}

// NewVM creates a new VM instance.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		maxFrames: DefaultMaxFrames,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Execute runs chunk on a fresh VM.
func Execute(chunk *Chunk, opts ...Option) (Value, error) {
	return NewVM(opts...).Run(chunk)
}

// Run executes chunk as the outermost frame. It returns the value yielded by
// the outermost OpReturn, or a nil Value when the chunk ends without one.
func (vm *VM) Run(chunk *Chunk) (Value, error) {
	vm.frames = append(vm.frames[:0], newFrame(chunk, nil, nil))
	vm.steps = 0
	return vm.run()
}

// Depth returns the number of active frames.
func (vm *VM) Depth() int {
	return len(vm.frames)
}

func (vm *VM) current() *Frame {
	return vm.frames[len(vm.frames)-1]
}

// fail builds a RuntimeError for the instruction at offset in f.
func (vm *VM) fail(f *Frame, offset int, op Opcode, err error) error {
	line, _ := f.chunk.GetSourceLocation(uint32(offset))
	return &RuntimeError{
		Chunk:  f.chunk.Name,
		Offset: offset,
		Op:     op,
		Line:   int(line),
		Err:    err,
	}
}

// run is the main execution loop.
func (vm *VM) run() (Value, error) {
	for {
		f := vm.current()

		if f.ip >= len(f.chunk.Code) {
			if len(vm.frames) == 1 {
				return nil, nil
			}
			// A function body without a trailing return yields nil.
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.current().push(Nil)
			continue
		}

		vm.steps++
		if vm.steps%ctxCheckInterval == 0 {
			if err := vm.ctx.Err(); err != nil {
				return nil, fmt.Errorf("vm: %w", err)
			}
		}

		offset := f.ip
		op := Opcode(f.chunk.Code[f.ip])
		f.ip++
		if f.ip+op.OperandLen() > len(f.chunk.Code) {
			return nil, vm.fail(f, offset, op, ErrTruncated)
		}

		if vm.trace {
			log.Debugf("[%s %04X] %-12s stack=%v", f.chunk.Name, offset, op, f.stack)
		}

		switch op {
		case OpPop:
			if _, err := f.pop(); err != nil {
				return nil, vm.fail(f, offset, op, err)
			}

		case OpNil:
			f.push(Nil)

		case OpConstant:
			idx := f.chunk.readUint16(f.ip)
			f.ip += 2
			v, ok := f.chunk.GetConstant(idx)
			if !ok {
				return nil, vm.fail(f, offset, op, fmt.Errorf("%w: %d", ErrBadConstant, idx))
			}
			f.push(v)

		case OpLoad:
			slot := int(f.chunk.readUint16(f.ip))
			f.ip += 2
			v, err := f.load(slot)
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.push(v)

		case OpStore:
			slot := int(f.chunk.readUint16(f.ip))
			f.ip += 2
			v, err := f.pop()
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.store(slot, v)

		case OpLoadCapture:
			idx := int(f.chunk.readUint16(f.ip))
			f.ip += 2
			if idx >= len(f.captures) {
				return nil, vm.fail(f, offset, op, fmt.Errorf("%w: %d", ErrBadCapture, idx))
			}
			f.push(f.captures[idx])

		case OpAdd, OpSubtract, OpMultiply, OpDivide:
			// The compiler pushes right first, so left is on top.
			operands, err := f.popN(2)
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			result, err := arith(op, operands[0], operands[1])
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.push(result)

		case OpCall:
			argc := int(f.chunk.Code[f.ip])
			f.ip++
			if err := vm.call(f, argc); err != nil {
				return nil, vm.fail(f, offset, op, err)
			}

		case OpMakeClosure:
			idx := f.chunk.readUint16(f.ip)
			n := int(f.chunk.Code[f.ip+2])
			f.ip += 3
			v, ok := f.chunk.GetConstant(idx)
			proto, isFn := v.(*Function)
			if !ok || !isFn {
				return nil, vm.fail(f, offset, op, fmt.Errorf("%w: %d is not a function", ErrBadConstant, idx))
			}
			// Captures were pushed in reverse, the first pop is capture 0.
			captures, err := f.popN(n)
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.push(proto.WithCaptures(captures))

		case OpMakeArray:
			n := int(f.chunk.readUint16(f.ip))
			f.ip += 2
			elements, err := f.popN(n)
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.push(&Array{Elements: elements})

		case OpMakeStruct:
			n := int(f.chunk.readUint16(f.ip))
			f.ip += 2
			s, err := makeStruct(f, n)
			if err != nil {
				return nil, vm.fail(f, offset, op, err)
			}
			f.push(s)

		case OpReturn:
			if len(f.stack) == 0 {
				return nil, vm.fail(f, offset, op, ErrStackUnderflow)
			}
			result := f.stack[0]
			if len(vm.frames) == 1 {
				return result, nil
			}
			vm.frames[len(vm.frames)-1] = nil
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.current().push(result)

		default:
			return nil, vm.fail(f, offset, op, ErrUnknownOpcode)
		}
	}
}

// call pops the callee and its arguments from f. A function callee gets a new
// frame whose slot i holds argument i; anything else is skipped with a warning
// and leaves nil as the call's result.
func (vm *VM) call(f *Frame, argc int) error {
	callee, err := f.pop()
	if err != nil {
		return err
	}
	popped, err := f.popN(argc)
	if err != nil {
		return err
	}
	// Arguments were pushed in source order, so the first pop is the last one.
	args := make([]Value, argc)
	for i, v := range popped {
		args[argc-1-i] = v
	}

	fn, ok := callee.(*Function)
	if !ok {
		log.Warningf("call of non-function value %s ignored", callee)
		f.push(Nil)
		return nil
	}
	if fn.Arity != argc {
		return fmt.Errorf("%w: %s expects %d, got %d", ErrArity, fn.Name, fn.Arity, argc)
	}
	if len(vm.frames) >= vm.maxFrames {
		return fmt.Errorf("%w: %d frames", ErrFrameOverflow, vm.maxFrames)
	}
	if vm.trace {
		log.Debugf("call %s with %v", fn.Name, args)
	}
	vm.frames = append(vm.frames, newFrame(fn.Chunk, args, fn.Captures))
	return nil
}

// makeStruct pops n (name, value) pairs. The name constant of each pair sits
// above its value; the first pair popped is the first declared field.
func makeStruct(f *Frame, n int) (*Struct, error) {
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		name, err := f.pop()
		if err != nil {
			return nil, err
		}
		text, ok := name.(Text)
		if !ok {
			return nil, fmt.Errorf("%w: field name is %s", ErrBadOperand, name.Kind())
		}
		value, err := f.pop()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: string(text), Value: value})
	}
	return &Struct{Fields: fields}, nil
}

func arith(op Opcode, left, right Value) (Value, error) {
	switch l := left.(type) {
	case Number:
		if r, ok := right.(Number); ok {
			switch op {
			case OpAdd:
				return l + r, nil
			case OpSubtract:
				return l - r, nil
			case OpMultiply:
				return l * r, nil
			case OpDivide:
				return l / r, nil
			}
		}
	case Text:
		if r, ok := right.(Text); ok && op == OpAdd {
			return l + r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s %s", ErrBadOperand, left.Kind(), op, right.Kind())
}
