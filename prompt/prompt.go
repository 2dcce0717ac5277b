package prompt

import (
	"context"
	"fmt"
	"sort"
)

// Func asks the user for a single line of input
type Func func(ctx context.Context, message string) (string, error)

var Methods = map[string]Func{}

func Available() []string {
	methods := []string{}
	for k := range Methods {
		methods = append(methods, k)
	}
	sort.Strings(methods)
	return methods
}

func Method(s string) Func {
	m, ok := Methods[s]
	if !ok {
		panic(fmt.Sprintf("Prompt method %q doesn't exist", s))
	}
	return m
}

// TokenMessage is the text shown when asking for a token
func TokenMessage(digits int) string {
	return fmt.Sprintf("Enter your %d-digit token: ", digits)
}
