package web

import (
	"context"
	"strings"

	"github.com/jgrana2/prompt-manager/internal/vars"
)

type inputsKey struct{}

// WithInputs attaches the manual variable values submitted with a run.
func WithInputs(ctx context.Context, inputs map[string]string) context.Context {
	return context.WithValue(ctx, inputsKey{}, inputs)
}

// Inputs answers manual variables from the values attached to the run
// context. A missing or blank value falls back to the default.
var Inputs vars.Prompter = vars.PrompterFunc(func(ctx context.Context, name, def string) (string, error) {
	inputs, _ := ctx.Value(inputsKey{}).(map[string]string)
	if v, ok := inputs[name]; ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	return def, nil
})
