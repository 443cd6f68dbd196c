package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMax(t *testing.T) *Module {
	t.Helper()
	r := NewRegistry()
	m := NewModule("demo", r, NewAttrStore(r))

	sig := Signature{Params: []*Type{r.Term(), r.Term()}, Results: []*Type{r.Term()}}
	f, err := m.Define("demo:max/2", sig, Location{File: "demo.erl", Line: 3, Column: 1})
	require.NoError(t, err)

	entry := f.Entry()
	a, b := entry.Arg(0), entry.Arg(1)
	cmp := f.NewOp(OpCmpGte, Unknown, []*Value{a, b}, r.Boolean())
	entry.Append(cmp)

	then, els := f.AddBlock(), f.AddBlock()
	cond := f.NewOp(OpIf, Unknown, []*Value{cmp.Result(0)})
	cond.AddSuccessor(RoleTrue, then)
	cond.AddSuccessor(RoleFalse, els)
	entry.Append(cond)

	then.Append(f.NewOp(OpReturn, Unknown, []*Value{a}))
	els.Append(f.NewOp(OpReturn, Unknown, []*Value{b}))

	_, err = m.GetOrDeclare("__lumen_builtin_cmp.gte",
		Signature{Params: []*Type{r.MustInt(64), r.MustInt(64)}, Results: []*Type{r.I1()}})
	require.NoError(t, err)
	return m
}

func TestFormatModule(t *testing.T) {
	want := `module demo

func @"demo:max/2"(term, term) -> term {
^bb0(%0: term, %1: term):
  %2 = cmp.gte %0, %1 : boolean
  if %2, true ^bb1, false ^bb2
^bb1:
  return %0
^bb2:
  return %1
}

declare @__lumen_builtin_cmp.gte(i64, i64) -> i1
`
	assert.Equal(t, want, FormatModule(buildMax(t)))
}

func TestFingerprintDeterministic(t *testing.T) {
	a, b := buildMax(t), buildMax(t)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)

	b.Name = "other"
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, FunctionFingerprint(a.Lookup("demo:max/2")), FunctionFingerprint(b.Lookup("demo:max/2")))
}

func TestGetOrDeclare(t *testing.T) {
	r := NewRegistry()
	m := NewModule("m", r, NewAttrStore(r))
	sig := Signature{Params: []*Type{r.Term()}, Results: []*Type{r.I1()}}

	first, err := m.GetOrDeclare("rt", sig)
	require.NoError(t, err)
	for range 5 {
		again, err := m.GetOrDeclare("rt", sig)
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
	assert.Len(t, m.Functions(), 1)
	assert.True(t, first.IsDeclaration())

	_, err = m.GetOrDeclare("rt", Signature{Params: []*Type{r.Term()}})
	var se *SymbolError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeIncompatibleRedeclaration, se.Code)
}

func TestDefine(t *testing.T) {
	r := NewRegistry()
	m := NewModule("m", r, NewAttrStore(r))
	sig := Signature{Params: []*Type{r.Term()}, Results: []*Type{r.Term()}}

	decl, err := m.GetOrDeclare("f", sig)
	require.NoError(t, err)
	def, err := m.Define("f", sig, Unknown)
	require.NoError(t, err)
	assert.Same(t, decl, def, "declaration is promoted")
	assert.False(t, def.IsDeclaration())
	assert.Equal(t, 1, def.Entry().NumArgs())

	_, err = m.Define("f", sig, Unknown)
	var se *SymbolError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeDuplicateDefinition, se.Code)

	m.Freeze()
	_, err = m.Define("g", sig, Unknown)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeModuleFrozen, se.Code)
}

func TestReplaceAllUses(t *testing.T) {
	m := buildMax(t)
	f := m.Lookup("demo:max/2")
	entry := f.Entry()
	a, b := entry.Arg(0), entry.Arg(1)

	assert.Equal(t, 2, f.Uses(a))
	f.ReplaceAllUses(a, b)
	assert.Equal(t, 0, f.Uses(a))
	assert.Equal(t, 4, f.Uses(b))
}

func TestBlockEditing(t *testing.T) {
	m := buildMax(t)
	f := m.Lookup("demo:max/2")
	entry := f.Entry()
	r := m.Types

	cmp := entry.Ops()[0]
	c := f.NewOp(OpConstant, Unknown, nil, r.Atom())
	c.Attr = m.Attrs.AtomNamed("ok")
	entry.InsertBefore(cmp, c)
	require.Len(t, entry.Ops(), 3)
	assert.Same(t, c, entry.Ops()[0])
	assert.Same(t, entry, c.Block())

	entry.Remove(c)
	assert.Nil(t, c.Block())
	assert.Same(t, cmp, entry.Ops()[0])

	assert.NotNil(t, entry.Terminator())
	assert.Len(t, entry.Successors(), 2)
}

func TestSignatureString(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		sig  Signature
		want string
	}{
		{Signature{}, "() -> ()"},
		{Signature{Params: []*Type{r.Term()}, Results: []*Type{r.Term()}}, "(term) -> term"},
		{Signature{Params: []*Type{r.MustInt(64)}, Results: []*Type{r.I1(), r.MustInt(64)}}, "(i64) -> (i1, i64)"},
		{Signature{Params: []*Type{r.Term()}, VarArgs: true}, "(term, ...) -> ()"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sig.String())
	}
}

func TestBinarySpec(t *testing.T) {
	spec := BinarySpec{Type: BinaryInteger, Endian: EndianLittle, Signed: true}
	assert.Equal(t, "integer-signed-little-unit:1", spec.String())
	assert.Equal(t, uint32(0|1<<4|1<<6|1<<8), spec.Encode())

	bytes := BinarySpec{Type: BinaryBytes}
	assert.Equal(t, uint8(8), bytes.EffectiveUnit())

	bt, ok := ParseBinaryType("utf16")
	require.True(t, ok)
	assert.Equal(t, BinaryUTF16, bt)
}
