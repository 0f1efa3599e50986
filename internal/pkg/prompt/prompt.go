// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package prompt provides operator prompts for interactive login steps.
//
// Every blocking question asked of the operator (the OAuth2 callback URL, a one-time
// code, a security answer) goes through a Prompter so that it can be replaced by a
// scripted implementation.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies what the operator is asked for.
type Kind int

const (
	// KindAuthorizationCallback asks for the full OAuth2 callback URL.
	KindAuthorizationCallback Kind = iota + 1
	// KindOTP asks for a one-time password.
	KindOTP
	// KindSecurityAnswer asks for the answer to a security question.
	KindSecurityAnswer
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorizationCallback:
		return "authorization callback"
	case KindOTP:
		return "one-time password"
	case KindSecurityAnswer:
		return "security answer"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Request is a single question for the operator.
type Request struct {
	// Kind is what is being asked for.
	Kind Kind
	// Message is shown to the operator before reading the response.
	Message string
}

// Prompter asks the operator a question and returns the answer.
type Prompter interface {
	// Prompt blocks until the operator answers. The answer is returned with
	// surrounding whitespace removed.
	Prompt(ctx context.Context, request Request) (string, error)
}

// Func adapts a function to a Prompter.
type Func func(ctx context.Context, request Request) (string, error)

// Prompt implements Prompter.
func (f Func) Prompt(ctx context.Context, request Request) (string, error) {
	return f(ctx, request)
}

// NewTerminalPrompter returns a Prompter that writes the message to writer and
// reads one line from reader.
func NewTerminalPrompter(reader io.Reader, writer io.Writer) Prompter {
	return &terminalPrompter{
		scanner: bufio.NewScanner(reader),
		writer:  writer,
	}
}

// *** PRIVATE ***

type terminalPrompter struct {
	scanner *bufio.Scanner
	writer  io.Writer
}

func (p *terminalPrompter) Prompt(ctx context.Context, request Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(p.writer, request.Message); err != nil {
		return "", err
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", request.Kind, err)
		}
		return "", fmt.Errorf("reading %s: %w", request.Kind, io.ErrUnexpectedEOF)
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// ErrNoPrompter is returned when an interactive step is needed but no Prompter was configured.
var ErrNoPrompter = errors.New("operator input required but no prompter is configured")
