package ir

import (
	"strconv"
	"strings"
)

// FormatModule renders a module as text. The output is deterministic: two
// modules built by the same sequence of calls print identically.
func FormatModule(m *Module) string {
	var sb strings.Builder
	sb.WriteString("module ")
	sb.WriteString(m.Name)
	sb.WriteString("\n")
	for _, f := range m.funcs {
		sb.WriteString("\n")
		writeFunction(&sb, f)
	}
	return sb.String()
}

// FormatFunction renders a single function or declaration.
func FormatFunction(f *Function) string {
	var sb strings.Builder
	writeFunction(&sb, f)
	return sb.String()
}

// FormatOp renders a single op without indentation or newline.
func FormatOp(op *Op) string {
	var sb strings.Builder
	writeOp(&sb, op)
	return sb.String()
}

// FormatSymbol prints a symbol reference, quoting names that are not plain
// identifiers.
func FormatSymbol(name string) string {
	if isPlainSymbol(name) {
		return "@" + name
	}
	return "@" + strconv.Quote(name)
}

func isPlainSymbol(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isIdentPart(c) && c != '$' {
			return false
		}
	}
	return !isDigit(name[0])
}

func writeFunction(sb *strings.Builder, f *Function) {
	if f.decl {
		sb.WriteString("declare ")
		sb.WriteString(FormatSymbol(f.Name))
		sb.WriteString(f.Sig.String())
		sb.WriteString("\n")
		return
	}
	sb.WriteString("func ")
	sb.WriteString(FormatSymbol(f.Name))
	sb.WriteString(f.Sig.String())
	sb.WriteString(" {\n")
	for _, b := range f.blocks {
		writeBlock(sb, b)
	}
	sb.WriteString("}\n")
}

func writeBlock(sb *strings.Builder, b *Block) {
	sb.WriteString(b.String())
	if len(b.args) > 0 {
		sb.WriteByte('(')
		for i, a := range b.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
			sb.WriteString(": ")
			sb.WriteString(a.typ.String())
		}
		sb.WriteByte(')')
	}
	sb.WriteString(":\n")
	for _, op := range b.ops {
		sb.WriteString("  ")
		writeOp(sb, op)
		sb.WriteString("\n")
	}
}

func valueList(vs []*Value) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

func writeOp(sb *strings.Builder, op *Op) {
	if len(op.results) > 0 {
		sb.WriteString(valueList(op.results))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Kind.String())
	switch op.Kind {
	case OpIsType:
		sb.WriteString("<" + op.TypeArg.String() + ">")
	case OpTupleGet, OpUnpackEnv:
		sb.WriteString("[" + strconv.Itoa(op.Index) + "]")
	case OpBinaryPush, OpBinaryMatch:
		sb.WriteString("<" + op.Spec.String() + ">")
	case OpLandingPad:
		sb.WriteString("<" + op.Dialect + ">")
	}
	if op.Tail {
		sb.WriteString(" tail")
	}

	var items []string
	switch op.Kind {
	case OpConstant:
		items = append(items, op.Attr.String())
	case OpCall, OpStaticCall, OpClosure:
		items = append(items, FormatSymbol(op.Callee)+"("+valueList(op.operands)+")")
	case OpClosureCall:
		items = append(items, op.operands[0].String()+"("+valueList(op.operands[1:])+")")
	case OpMapUpdate:
		items = append(items, op.operands[0].String())
		next := 1
		for _, a := range op.Actions {
			n := a.Operands()
			items = append(items, a.String()+"("+valueList(op.operands[next:next+n])+")")
			next += n
		}
	default:
		for _, v := range op.operands {
			items = append(items, v.String())
		}
	}
	if op.Kind == OpBinaryFinish && op.Attr != nil {
		items = append(items, "folded "+op.Attr.String())
	}
	for _, s := range op.succs {
		target := s.Block.String()
		if len(s.Args) > 0 {
			target += "(" + valueList(s.Args) + ")"
		}
		if s.Role != RoleDest {
			target = s.Role.String() + " " + target
		}
		items = append(items, target)
	}
	if len(items) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(items, ", "))
	}
	if len(op.results) > 0 {
		types := make([]string, len(op.results))
		for i, r := range op.results {
			types[i] = r.typ.String()
		}
		sb.WriteString(" : ")
		sb.WriteString(strings.Join(types, ", "))
	}
}
