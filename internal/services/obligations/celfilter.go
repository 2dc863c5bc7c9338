package obligsvc

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/ledgerq/ledgerq/internal/obligation"
)

// compileEligibility compiles a CEL expression into an EligibilityFunc. The
// expression sees subject, amount, age_ms, and now_ms. An empty expression
// returns nil (no filtering).
func compileEligibility(expr string) (obligation.EligibilityFunc, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		// int literals still compare against the uint amount
		cel.CrossTypeNumericComparisons(true),
		cel.Variable("subject", cel.StringType),
		// Unsigned so amounts above MaxInt64 keep their value in comparisons
		cel.Variable("amount", cel.UintType),
		// Milliseconds since the obligation was registered
		cel.Variable("age_ms", cel.IntType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return func(subject string, amount uint64, ageMs int64) bool {
		out, _, err := prog.Eval(map[string]any{
			"subject": subject,
			"amount":  amount,
			"age_ms":  ageMs,
			"now_ms":  time.Now().UnixMilli(),
		})
		if err != nil {
			// An expression that errors must not silently strand entries;
			// treat it as eligible.
			return true
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}
