package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
)

// celMatcher backs the "matches" comparator with a single compiled CEL
// program rather than a fresh regexp.Compile per evaluation, following the
// env-once/program-once shape of a CEL-based policy evaluator: build the
// environment and program at construction time, then only ever call
// prg.Eval per decision.
type celMatcher struct {
	prg cel.Program
}

func newCELMatcher() (*celMatcher, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("subject", types.StringType),
			decls.NewVariable("pattern", types.StringType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel env: %w", err)
	}

	ast, issues := env.Compile(`subject.matches(pattern)`)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: cel compile: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("policy: cel program: %w", err)
	}

	return &celMatcher{prg: prg}, nil
}

// Matches evaluates subject.matches(pattern) via CEL's built-in RE2 regular
// expression support, which is what backs the "matches" comparator for
// string subjects such as user identifiers.
func (m *celMatcher) Matches(subject, pattern string) (bool, error) {
	out, _, err := m.prg.Eval(map[string]any{
		"subject": subject,
		"pattern": pattern,
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: cel result is not bool")
	}
	return b, nil
}
