// Package jq evaluates the jq programs issuers use for metadata and credential templates.
package jq

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/itchyny/gojq"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

const (
	// programTTL bounds how long the program of a replaced or deleted issuer template stays compiled.
	programTTL      = time.Hour
	programsCleanup = 10 * time.Minute
)

// programs holds compiled programs keyed by their source.
var programs = cache.New(programTTL, programsCleanup)

// Program is a compiled jq program, safe for concurrent use.
type Program struct {
	source string
	code   *gojq.Code
}

// Compile parses and compiles a jq program.
func Compile(source string) (*Program, error) {
	query, err := gojq.Parse(source)
	if err != nil {
		return nil, errors.Wrap(err, "parsing jq program")
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, errors.Wrap(err, "compiling jq program")
	}
	return &Program{source: source, code: code}, nil
}

func (p *Program) String() string {
	return p.source
}

// First runs the program against input and returns its first output. A program without output yields nil.
func (p *Program) First(ctx context.Context, input any) (any, error) {
	iter := p.code.RunWithContext(ctx, input)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, errors.Wrap(err, "evaluating jq program")
	}
	return v, nil
}

// Cached returns the compiled program of source, compiling it on first use.
func Cached(source string) (*Program, error) {
	if p, ok := programs.Get(source); ok {
		return p.(*Program), nil
	}
	p, err := Compile(source)
	if err != nil {
		return nil, err
	}
	programs.SetDefault(source, p)
	return p, nil
}

// First returns the first output of the program of source for input.
func First(ctx context.Context, source string, input any) (any, error) {
	p, err := Cached(source)
	if err != nil {
		return nil, err
	}
	return p.First(ctx, input)
}

// ToInput converts a value into the generic form jq operates on by a JSON round trip.
func ToInput(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling jq input")
	}
	var input any
	if err = json.Unmarshal(b, &input); err != nil {
		return nil, errors.Wrap(err, "unmarshalling jq input")
	}
	return input, nil
}
