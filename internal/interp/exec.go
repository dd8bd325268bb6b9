package interp

import (
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

type flow uint8

const (
	flowNormal flow = iota
	flowBreak
	flowContinue
	flowReturn
	flowDiscard
)

var compoundOps = map[wgsl.TokenKind]wgsl.TokenKind{
	wgsl.TokenPlusEqual:           wgsl.TokenPlus,
	wgsl.TokenMinusEqual:          wgsl.TokenMinus,
	wgsl.TokenStarEqual:           wgsl.TokenStar,
	wgsl.TokenSlashEqual:          wgsl.TokenSlash,
	wgsl.TokenPercentEqual:        wgsl.TokenPercent,
	wgsl.TokenAmpEqual:            wgsl.TokenAmpersand,
	wgsl.TokenPipeEqual:           wgsl.TokenPipe,
	wgsl.TokenCaretEqual:          wgsl.TokenCaret,
	wgsl.TokenLessLessEqual:       wgsl.TokenLessLess,
	wgsl.TokenGreaterGreaterEqual: wgsl.TokenGreaterGreater,
}

func (m *Machine) top() *frame {
	return m.frames[len(m.frames)-1]
}

// execBlock runs the statements of b in sc, a fresh scope owned by the block.
func (m *Machine) execBlock(b *wgsl.BlockStmt, sc *scope) (flow, error) {
	fr := m.top()
	saved := fr.scope
	fr.scope = sc
	defer func() { fr.scope = saved }()

	for _, stmt := range b.Statements {
		fl, err := m.exec(stmt)
		if err != nil || fl != flowNormal {
			return fl, err
		}
	}

	return flowNormal, nil
}

func (m *Machine) exec(stmt wgsl.Stmt) (flow, error) {
	if b, ok := stmt.(*wgsl.BlockStmt); ok {
		return m.execBlock(b, newScope(m.top().scope))
	}

	err := m.step(stmt.Pos())
	if err != nil {
		return flowNormal, err
	}

	return m.execUnhooked(stmt)
}

func (m *Machine) execUnhooked(stmt wgsl.Stmt) (flow, error) {
	switch s := stmt.(type) {
	case *wgsl.BlockStmt:
		return m.execBlock(s, newScope(m.top().scope))
	case *wgsl.VarDecl:
		v, err := m.declValue(s.Type, s.Init)
		if err != nil {
			return flowNormal, errors.Wrapf(err, "line %d: %s", s.Span.Start.Line, s.Name)
		}
		m.top().scope.declare(s.Name, v)
		return flowNormal, nil
	case *wgsl.ConstDecl:
		v, err := m.declValue(s.Type, s.Init)
		if err != nil {
			return flowNormal, errors.Wrapf(err, "line %d: %s", s.Span.Start.Line, s.Name)
		}
		m.top().scope.declare(s.Name, v)
		return flowNormal, nil
	case *wgsl.AssignStmt:
		return flowNormal, m.assign(s)
	case *wgsl.ExprStmt:
		_, err := m.eval(s.Expr)
		return flowNormal, err
	case *wgsl.ReturnStmt:
		return m.execReturn(s)
	case *wgsl.IfStmt:
		return m.execIf(s)
	case *wgsl.ForStmt:
		return m.execFor(s)
	case *wgsl.WhileStmt:
		return m.execWhile(s)
	case *wgsl.LoopStmt:
		return m.execLoop(s)
	case *wgsl.SwitchStmt:
		return m.execSwitch(s)
	case *wgsl.BreakStmt:
		return flowBreak, nil
	case *wgsl.ContinueStmt:
		return flowContinue, nil
	case *wgsl.DiscardStmt:
		return flowDiscard, nil
	default:
		return flowNormal, errors.Wrapf(ErrUnsupported, "statement %T", stmt)
	}
}

func (m *Machine) declValue(typ wgsl.Type, init wgsl.Expr) (value.Value, error) {
	if typ == nil {
		if init == nil {
			return value.Value{}, errors.Wrap(ErrType, "declaration without type or initializer")
		}
		v, err := m.eval(init)
		if err != nil {
			return value.Value{}, err
		}
		return concretize(v), nil
	}

	t, err := m.resolveType(typ)
	if err != nil {
		return value.Value{}, err
	}
	if init == nil {
		return value.Zero(t), nil
	}

	v, err := m.eval(init)
	if err != nil {
		return value.Value{}, err
	}

	return coerce(v, t)
}

func (m *Machine) assign(s *wgsl.AssignStmt) error {
	rhs, err := m.eval(s.Right)
	if err != nil {
		return err
	}

	if id, ok := s.Left.(*wgsl.Ident); ok && id.Name == "_" {
		return nil
	}

	ref, err := m.ref(s.Left)
	if err != nil {
		return err
	}

	if s.Op != wgsl.TokenEqual {
		op, ok := compoundOps[s.Op]
		if !ok {
			return errors.Wrapf(ErrUnsupported, "assignment operator %d", s.Op)
		}
		rhs, err = binary(op, ref.load(), rhs)
		if err != nil {
			return errors.Wrapf(err, "line %d", s.Span.Start.Line)
		}
	}

	err = ref.store(rhs)
	if err != nil {
		return errors.Wrapf(err, "line %d", s.Span.Start.Line)
	}

	return nil
}

func (m *Machine) execReturn(s *wgsl.ReturnStmt) (flow, error) {
	fr := m.top()
	if s.Value == nil {
		return flowReturn, nil
	}

	v, err := m.eval(s.Value)
	if err != nil {
		return flowNormal, err
	}
	if fr.ret != nil {
		v, err = coerce(v, *fr.ret)
		if err != nil {
			return flowNormal, errors.Wrapf(err, "return value of %s", fr.fn.Name)
		}
	}
	fr.result = v

	return flowReturn, nil
}

func (m *Machine) condition(e wgsl.Expr) (bool, error) {
	v, err := m.eval(e)
	if err != nil {
		return false, err
	}

	return v.Truth(), nil
}

func (m *Machine) execIf(s *wgsl.IfStmt) (flow, error) {
	ok, err := m.condition(s.Condition)
	if err != nil {
		return flowNormal, err
	}

	switch {
	case ok:
		return m.execBlock(s.Body, newScope(m.top().scope))
	case s.Else != nil:
		return m.exec(s.Else)
	default:
		return flowNormal, nil
	}
}

// loopBody runs one iteration and reports whether the loop must stop.
func (m *Machine) loopBody(body *wgsl.BlockStmt) (flow, bool, error) {
	fl, err := m.execBlock(body, newScope(m.top().scope))
	if err != nil {
		return flowNormal, true, err
	}

	switch fl {
	case flowBreak:
		return flowNormal, true, nil
	case flowReturn, flowDiscard:
		return fl, true, nil
	default:
		return flowNormal, false, nil
	}
}

// Loops report their header again on every back edge, before the update
// and the condition run.
func (m *Machine) execFor(s *wgsl.ForStmt) (flow, error) {
	fr := m.top()
	sc := newScope(fr.scope)
	saved := fr.scope
	fr.scope = sc
	defer func() { fr.scope = saved }()

	if s.Init != nil {
		_, err := m.execUnhooked(s.Init)
		if err != nil {
			return flowNormal, err
		}
	}

	for first := true; ; first = false {
		if !first {
			err := m.step(s.Span)
			if err != nil {
				return flowNormal, err
			}
			if s.Update != nil {
				_, err = m.execUnhooked(s.Update)
				if err != nil {
					return flowNormal, err
				}
			}
		}
		if s.Condition != nil {
			ok, err := m.condition(s.Condition)
			if err != nil {
				return flowNormal, err
			}
			if !ok {
				return flowNormal, nil
			}
		}

		fl, stop, err := m.loopBody(s.Body)
		if stop {
			return fl, err
		}
	}
}

func (m *Machine) execWhile(s *wgsl.WhileStmt) (flow, error) {
	for first := true; ; first = false {
		if !first {
			err := m.step(s.Span)
			if err != nil {
				return flowNormal, err
			}
		}
		ok, err := m.condition(s.Condition)
		if err != nil {
			return flowNormal, err
		}
		if !ok {
			return flowNormal, nil
		}

		fl, stop, err := m.loopBody(s.Body)
		if stop {
			return fl, err
		}
	}
}

func (m *Machine) execLoop(s *wgsl.LoopStmt) (flow, error) {
	for first := true; ; first = false {
		if !first {
			err := m.step(s.Span)
			if err != nil {
				return flowNormal, err
			}
		}

		fl, stop, err := m.loopBody(s.Body)
		if stop {
			return fl, err
		}
		if s.Continuing != nil {
			fl, err = m.execBlock(s.Continuing, newScope(m.top().scope))
			if err != nil || fl == flowReturn || fl == flowDiscard {
				return fl, err
			}
		}
	}
}

func (m *Machine) execSwitch(s *wgsl.SwitchStmt) (flow, error) {
	sel, err := m.eval(s.Selector)
	if err != nil {
		return flowNormal, err
	}

	var chosen, fallback *wgsl.SwitchCaseClause
	for _, c := range s.Cases {
		if c.IsDefault {
			fallback = c
			continue
		}
		for _, e := range c.Selectors {
			if id, ok := e.(*wgsl.Ident); ok && id.Name == "default" {
				fallback = c
				continue
			}
			v, err := m.eval(e)
			if err != nil {
				return flowNormal, err
			}
			if v.Int() == sel.Int() {
				chosen = c
				break
			}
		}
		if chosen != nil {
			break
		}
	}
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		return flowNormal, nil
	}

	fl, err := m.execBlock(chosen.Body, newScope(m.top().scope))
	if fl == flowBreak {
		fl = flowNormal
	}

	return fl, err
}
