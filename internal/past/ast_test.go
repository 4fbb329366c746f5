package past

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIfElifElseRendersNestedOrelse(t *testing.T) {
	stmt := &If{
		Test: &Compare{Left: &Name{Id: "x"}, Ops: []CmpOp{Eq}, Comparators: []Expression{&Constant{Value: 0}}},
		Body: []Statement{&Return{Value: &Constant{Value: "a"}}},
		Orelse: []Statement{
			&If{
				Test: &Compare{Left: &Name{Id: "x"}, Ops: []CmpOp{Eq}, Comparators: []Expression{&Constant{Value: 1}}},
				Body: []Statement{&Return{Value: &Constant{Value: "b"}}},
				Orelse: []Statement{
					&Return{Value: &Constant{Value: "c"}},
				},
			},
		},
	}
	out := stmt.String()
	require.Contains(t, out, "if x == 0:")
	require.Contains(t, out, "return \"a\"")
	require.Contains(t, out, "if x == 1:")
}

func TestChainAssignment(t *testing.T) {
	a := &Assign{
		Targets: []Expression{&Name{Id: "a"}, &Name{Id: "b"}},
		Value:   &Constant{Value: 1},
	}
	require.Equal(t, "a = b = 1", a.String())
}

func TestListCompRendersGenerators(t *testing.T) {
	lc := &ListComp{
		Elt: &BinOp{Left: &Name{Id: "i"}, Op: Mult, Right: &Constant{Value: 2}},
		Generators: []CompFor{
			{
				Target: &Name{Id: "i"},
				Iter:   &Call{Func: &Name{Id: "range"}, Args: []Expression{&Constant{Value: 10}}},
				Ifs:    []Expression{&BinOp{Left: &Name{Id: "i"}, Op: Mod, Right: &Constant{Value: 2}}},
			},
		},
	}
	require.Equal(t, "[(i * 2) for i in range(10) if (i % 2)]", lc.String())
}

func TestTryExceptElseFinally(t *testing.T) {
	tr := &Try{
		Body: []Statement{&ExprStmt{Value: &Call{Func: &Name{Id: "f"}}}},
		Handlers: []*ExceptHandler{
			{Type: &Name{Id: "ValueError"}, Name: "e", Body: []Statement{&ExprStmt{Value: &Call{Func: &Name{Id: "g"}, Args: []Expression{&Name{Id: "e"}}}}}},
		},
		Orelse:    []Statement{&ExprStmt{Value: &Call{Func: &Name{Id: "h"}}}},
		Finalbody: []Statement{&ExprStmt{Value: &Call{Func: &Name{Id: "k"}}}},
	}
	out := tr.String()
	require.Contains(t, out, "except ValueError as e:")
	require.Contains(t, out, "else:")
	require.Contains(t, out, "finally:")
}
