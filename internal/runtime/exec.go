package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
	"github.com/fennecml/fennec/internal/lower"
)

// Config assembles the collaborators a compiled function needs. Store
// is required for programs with ordered effects; Sink and Logger are
// optional.
type Config struct {
	Registry  *effects.Registry
	Rules     *lower.Rules
	Callbacks *CallbackRegistry
	Store     *TokenStore
	Sink      Sink
	Logger    *slog.Logger
	Clock     *Clock
}

// Compiled is an executable artifact: a lowered program plus the
// resolved host callbacks and the runtime state it threads tokens
// through. Safe for concurrent Call from independent execution
// contexts.
type Compiled struct {
	prog      *lower.Program
	reg       *effects.Registry
	store     *TokenStore
	sink      Sink
	clock     *Clock
	logger    *slog.Logger
	callbacks map[string]*callbackEntry

	closeOnce sync.Once
}

// Compile lowers g and binds the result to the runtime collaborators.
// Every callback referenced by a host call is resolved here, and its
// keepalive is retained until Close.
func Compile(cfg Config, g *ir.Graph) (*Compiled, error) {
	prog, err := lower.Lower(cfg.Registry, cfg.Rules, g)
	if err != nil {
		return nil, err
	}
	return Load(cfg, prog)
}

// Load binds an already-lowered program to the runtime collaborators.
func Load(cfg Config, prog *lower.Program) (*Compiled, error) {
	if cfg.Store == nil && len(prog.BoundaryEffects) > 0 {
		return nil, fmt.Errorf("program has ordered effects but no token store was configured")
	}
	c := &Compiled{
		prog:      prog,
		reg:       cfg.Registry,
		store:     cfg.Store,
		sink:      cfg.Sink,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		callbacks: make(map[string]*callbackEntry),
	}
	if c.clock == nil {
		c.clock = NewClock()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, fn := range prog.Funcs {
		for _, op := range fn.Ops {
			hc, ok := op.(*lower.HostCallOp)
			if !ok {
				continue
			}
			if _, ok := c.callbacks[hc.Callback]; ok {
				continue
			}
			if cfg.Callbacks == nil {
				return nil, fmt.Errorf("program references host callback %q but no callback registry was configured", hc.Callback)
			}
			entry, err := cfg.Callbacks.lookup(hc.Callback)
			if err != nil {
				return nil, err
			}
			c.callbacks[hc.Callback] = entry
		}
	}
	return c, nil
}

// Program returns the lowered program.
func (c *Compiled) Program() *lower.Program { return c.prog }

// Close releases callback keepalives. The compiled function must not
// be called afterwards.
func (c *Compiled) Close() error {
	var first error
	c.closeOnce.Do(func() {
		for _, entry := range c.callbacks {
			if entry.keepalive == nil {
				continue
			}
			if err := entry.keepalive.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

// Call executes the program under the given execution context.
//
// Per root ordered effect, the context's previous token is consumed as
// the chain head and a fresh successor token is stored before Call
// returns, so repeated calls in one context are chained in program
// order while other contexts proceed independently.
func (c *Compiled) Call(ctx context.Context, ec ExecContext, args ...Value) ([]Value, error) {
	main := c.prog.Main()
	nTok := len(c.prog.BoundaryEffects)
	if len(args) != len(main.Params)-nTok {
		return nil, fmt.Errorf("call: program takes %d arguments, got %d", len(main.Params)-nTok, len(args))
	}

	// Exchange boundary placeholders with the token store: the chain
	// head per effect is the context's last token, and the successor is
	// published before execution so the next call chains behind us.
	entry := make(map[effects.Effect]*Token, nTok)
	succ := make(map[effects.Effect]*Token, nTok)
	for _, e := range c.prog.BoundaryEffects {
		prev, ok := c.store.Get(e, ec)
		if !ok {
			prev = ResolvedToken()
		}
		entry[e] = prev
		next := NewToken()
		succ[e] = next
		c.store.Update(e, ec, next)
	}

	slots := make([]slot, 0, len(main.Params))
	for i := range main.Params {
		if i < nTok {
			slots = append(slots, slot{tok: entry[c.prog.BoundaryEffects[i]]})
			continue
		}
		slots = append(slots, slot{val: args[i-nTok]})
	}

	st := &execState{c: c, ec: ec, entry: entry}
	results, err := st.execFunction(ctx, main, slots)
	if err != nil {
		for _, t := range succ {
			t.Resolve(err)
		}
		return nil, err
	}

	// The first nTok results are the final program tokens; resolve each
	// successor once its chain drains.
	for i, e := range c.prog.BoundaryEffects {
		final := results[i].tok
		next := succ[e]
		go func() {
			<-final.Done()
			next.Resolve(final.Err())
		}()
	}

	out := make([]Value, 0, len(results)-nTok)
	for _, s := range results[nTok:] {
		out = append(out, s.val)
	}
	return out, nil
}

// slot carries either a numeric value or a token through the
// interpreter; the function's type signature says which is live.
type slot struct {
	val Value
	tok *Token
}

type execState struct {
	c     *Compiled
	ec    ExecContext
	entry map[effects.Effect]*Token
}

func (st *execState) execFunction(ctx context.Context, fn *lower.Function, args []slot) ([]slot, error) {
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("exec %s: takes %d params, got %d", fn.Name, len(fn.Params), len(args))
	}
	vals := make(map[int]Value)
	toks := make(map[int]*Token)
	for i, p := range fn.Params {
		if _, ok := p.Type.(lower.TokenType); ok {
			toks[p.ID] = args[i].tok
		} else {
			vals[p.ID] = args[i].val
		}
	}

	for _, op := range fn.Ops {
		switch o := op.(type) {
		case *lower.ConstOp:
			vals[o.Result.ID] = Value{Aval: ir.Scalar(o.DT), Data: []float64{o.Val}}

		case *lower.BinaryOp:
			out, err := evalBinary(o.Kind, vals[o.LHS.ID], vals[o.RHS.ID])
			if err != nil {
				return nil, err
			}
			vals[o.Result.ID] = out

		case *lower.SumOp:
			in := vals[o.Operand.ID]
			total := 0.0
			for _, v := range in.Data {
				total += v
			}
			vals[o.Result.ID] = Value{Aval: ir.Scalar(in.Aval.DType), Data: []float64{total}}

		case *lower.CreateTokenOp:
			head, ok := st.entry[o.Effect]
			if !ok {
				head = ResolvedToken()
			}
			toks[o.Result.ID] = head

		case *lower.HostCallOp:
			if err := st.execHostCall(ctx, o, vals, toks); err != nil {
				return nil, err
			}

		case *lower.CallOp:
			callee, ok := st.c.prog.Func(o.Callee)
			if !ok {
				return nil, fmt.Errorf("exec %s: unknown function %q", fn.Name, o.Callee)
			}
			res, err := st.execFunction(ctx, callee, gather(o.Args, vals, toks))
			if err != nil {
				return nil, err
			}
			scatter(o.Results, res, vals, toks)

		case *lower.IfOp:
			idx, err := branchIndex(vals[o.Pred.ID], len(o.Branches))
			if err != nil {
				return nil, err
			}
			branch, ok := st.c.prog.Func(o.Branches[idx])
			if !ok {
				return nil, fmt.Errorf("exec %s: unknown branch %q", fn.Name, o.Branches[idx])
			}
			res, err := st.execFunction(ctx, branch, gather(o.Args, vals, toks))
			if err != nil {
				return nil, err
			}
			scatter(o.Results, res, vals, toks)

		case *lower.WhileOp:
			res, err := st.execWhile(ctx, o, gather(o.Args, vals, toks))
			if err != nil {
				return nil, err
			}
			scatter(o.Results, res, vals, toks)

		case *lower.ScanOp:
			res, err := st.execScan(ctx, o, gather(o.Args, vals, toks))
			if err != nil {
				return nil, err
			}
			scatter(o.Results, res, vals, toks)

		case *lower.ReturnOp:
			return gather(o.Values, vals, toks), nil
		}
	}
	return nil, fmt.Errorf("exec %s: function has no return", fn.Name)
}

// execHostCall dispatches one host callback. Ordered calls chain behind
// their predecessor token; calls with no numeric results run
// asynchronously, everything else completes before the op finishes.
func (st *execState) execHostCall(ctx context.Context, o *lower.HostCallOp, vals map[int]Value, toks map[int]*Token) error {
	entry := st.c.callbacks[o.Callback]
	if entry == nil {
		return fmt.Errorf("host callback %q not bound", o.Callback)
	}

	if !o.Ordered {
		in := make([]Value, len(o.Args))
		for i, a := range o.Args {
			in[i] = vals[a.ID]
		}
		out, err := st.invoke(entry, o, in)
		if err != nil {
			return err
		}
		for i, r := range o.Results {
			vals[r.ID] = out[i]
		}
		return nil
	}

	pred := toks[o.Args[0].ID]
	next := NewToken()
	toks[o.Results[0].ID] = next

	in := make([]Value, len(o.Args)-1)
	for i, a := range o.Args[1:] {
		in[i] = vals[a.ID]
	}

	if len(o.Results) == 1 {
		// No numeric results: fire behind the predecessor without
		// blocking the caller. BlockUntilReady observes completion
		// through the token chain.
		go func() {
			if err := pred.Wait(context.WithoutCancel(ctx)); err != nil {
				next.Resolve(err)
				return
			}
			_, err := st.invoke(entry, o, in)
			next.Resolve(err)
		}()
		return nil
	}

	// Numeric results feed later ops, so the call completes here.
	if err := pred.Wait(ctx); err != nil {
		next.Resolve(err)
		return err
	}
	out, err := st.invoke(entry, o, in)
	next.Resolve(err)
	if err != nil {
		return err
	}
	for i, r := range o.Results[1:] {
		vals[r.ID] = out[i]
	}
	return nil
}

func (st *execState) invoke(entry *callbackEntry, o *lower.HostCallOp, in []Value) ([]Value, error) {
	out, err := entry.fn(in)
	if err != nil {
		return nil, fmt.Errorf("host callback %q: %w", o.Callback, err)
	}
	st.c.logger.Debug("host callback fired",
		"callback", o.Callback,
		"effect", o.Effect.Name(),
		"context", st.ec.ID(),
	)
	if st.c.sink != nil {
		var flat []float64
		for _, v := range in {
			flat = append(flat, v.Data...)
		}
		rec := Record{
			Seq:       st.c.clock.Next(),
			Effect:    o.Effect.Name(),
			Context:   st.ec.ID(),
			Program:   st.c.prog.Fingerprint,
			Callback:  o.Callback,
			Args:      flat,
			IRVersion: ir.Version,
		}
		if err := st.c.sink.Record(rec); err != nil {
			return nil, fmt.Errorf("effect journal: %w", err)
		}
	}
	return out, nil
}

func (st *execState) execWhile(ctx context.Context, o *lower.WhileOp, state []slot) ([]slot, error) {
	cond, ok := st.c.prog.Func(o.CondFn)
	if !ok {
		return nil, fmt.Errorf("exec while: unknown function %q", o.CondFn)
	}
	body, ok := st.c.prog.Func(o.BodyFn)
	if !ok {
		return nil, fmt.Errorf("exec while: unknown function %q", o.BodyFn)
	}
	for {
		condRes, err := st.execFunction(ctx, cond, state)
		if err != nil {
			return nil, err
		}
		// The condition threads tokens too: fold its updates back into
		// the loop state before testing the predicate.
		copy(state[:o.TokenCount], condRes[:o.TokenCount])
		if !condRes[o.TokenCount].val.Bool() {
			return state, nil
		}
		state, err = st.execFunction(ctx, body, state)
		if err != nil {
			return nil, err
		}
	}
}

func (st *execState) execScan(ctx context.Context, o *lower.ScanOp, args []slot) ([]slot, error) {
	body, ok := st.c.prog.Func(o.BodyFn)
	if !ok {
		return nil, fmt.Errorf("exec scan: unknown function %q", o.BodyFn)
	}
	xs := args[len(args)-1].val
	state := args[:len(args)-1] // tokens + carry
	carryLen := len(state) - o.TokenCount

	var stacked []Value
	for i := 0; i < o.Length; i++ {
		x := Value{Aval: elemAval(xs.Aval), Data: elemData(xs, i)}
		step := append(append([]slot{}, state...), slot{val: x})
		res, err := st.execFunction(ctx, body, step)
		if err != nil {
			return nil, err
		}
		state = res[:o.TokenCount+carryLen]
		for j, s := range res[o.TokenCount+carryLen:] {
			if len(stacked) <= j {
				stacked = append(stacked, Value{
					Aval: ir.AbstractValue{DType: s.val.Aval.DType, Shape: append([]int{o.Length}, s.val.Aval.Shape...)},
				})
			}
			stacked[j].Data = append(stacked[j].Data, s.val.Data...)
		}
	}

	out := append([]slot{}, state...)
	for _, v := range stacked {
		out = append(out, slot{val: v})
	}
	return out, nil
}

func evalBinary(kind string, l, r Value) (Value, error) {
	if len(l.Data) != len(r.Data) {
		return Value{}, fmt.Errorf("%s: operand length mismatch (%d vs %d)", kind, len(l.Data), len(r.Data))
	}
	out := Value{Aval: l.Aval, Data: make([]float64, len(l.Data))}
	for i := range l.Data {
		switch kind {
		case "add":
			out.Data[i] = l.Data[i] + r.Data[i]
		case "sub":
			out.Data[i] = l.Data[i] - r.Data[i]
		case "mul":
			out.Data[i] = l.Data[i] * r.Data[i]
		default:
			return Value{}, fmt.Errorf("unknown binary op %q", kind)
		}
	}
	return out, nil
}

func branchIndex(pred Value, n int) (int, error) {
	if pred.Aval.DType == ir.I1 {
		if pred.Bool() {
			return 0, nil
		}
		return 1, nil
	}
	idx := int(pred.Scalar())
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("branch index %d out of range [0, %d)", idx, n)
	}
	return idx, nil
}

func gather(vs []lower.Value, vals map[int]Value, toks map[int]*Token) []slot {
	out := make([]slot, len(vs))
	for i, v := range vs {
		if _, ok := v.Type.(lower.TokenType); ok {
			out[i] = slot{tok: toks[v.ID]}
		} else {
			out[i] = slot{val: vals[v.ID]}
		}
	}
	return out
}

func scatter(vs []lower.Value, res []slot, vals map[int]Value, toks map[int]*Token) {
	for i, v := range vs {
		if _, ok := v.Type.(lower.TokenType); ok {
			toks[v.ID] = res[i].tok
		} else {
			vals[v.ID] = res[i].val
		}
	}
}

func elemAval(a ir.AbstractValue) ir.AbstractValue {
	if len(a.Shape) == 0 {
		return a
	}
	return ir.AbstractValue{DType: a.DType, Shape: a.Shape[1:]}
}

func elemData(v Value, i int) []float64 {
	stride := 1
	for _, d := range v.Aval.Shape[1:] {
		stride *= d
	}
	return v.Data[i*stride : (i+1)*stride]
}
