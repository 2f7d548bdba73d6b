package condition

import (
	"errors"
	"testing"
)

func TestEvaluateComparisons(t *testing.T) {
	cases := []struct {
		expr  string
		price float64
		want  bool
	}{
		{"price > 3000", 3500, true},
		{"price > 3000", 3000, false},
		{"price >= 3000", 3000, true},
		{"price <= 100", 150, false},
		{"price <= 100", 100, true},
		{"price < 100", 99.5, true},
		{"price == 42", 42, true},
		{"price != 42", 42, false},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr, c.price)
		if err != nil {
			t.Fatalf("%s @ %v: unexpected error %v", c.expr, c.price, err)
		}
		if got != c.want {
			t.Fatalf("%s @ %v: got %v want %v", c.expr, c.price, got, c.want)
		}
	}
}

func TestEvaluateCombinators(t *testing.T) {
	cases := []struct {
		expr  string
		price float64
		want  bool
	}{
		{"price > 100 and price < 200", 150, true},
		{"price > 100 and price < 200", 250, false},
		{"price < 100 or price > 200", 250, true},
		{"price < 100 or price > 200", 150, false},
		// and binds tighter than or
		{"price < 0 or price > 100 and price < 200", 150, true},
		{"(price < 0 or price > 100) and price < 200", 150, true},
		{"(price < 0 or price > 100) and price < 120", 150, false},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr, c.price)
		if err != nil {
			t.Fatalf("%s @ %v: unexpected error %v", c.expr, c.price, err)
		}
		if got != c.want {
			t.Fatalf("%s @ %v: got %v want %v", c.expr, c.price, got, c.want)
		}
	}
}

func TestEvaluateRejectsNonGrammar(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"__import__('os')",
		"os.system",
		"volume > 100",
		"price >",
		"price 3000",
		"price > price",
		"price = 3000",
		"price > 3000 and",
		"(price > 3000",
		"price > 3000)",
		"price > 3000; price < 1",
	}
	for _, expr := range bad {
		_, err := Evaluate(expr, 100)
		if err == nil {
			t.Fatalf("%q: expected parse error, got none", expr)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("%q: expected *ParseError, got %T", expr, err)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	e, err := Parse("price > 100.5 and price != 200")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !e.Eval(150) {
			t.Fatalf("expected true on repeat eval %d", i)
		}
		if e.Eval(200) {
			t.Fatalf("expected false at boundary on repeat eval %d", i)
		}
	}
}
