// Copyright 2026 Peter Edge
//
// All rights reserved.

package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalPrompter(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	prompter := NewTerminalPrompter(strings.NewReader("  123456 \nsecond\n"), &out)
	answer, err := prompter.Prompt(context.Background(), Request{Kind: KindOTP, Message: "Code: "})
	require.NoError(t, err)
	require.Equal(t, "123456", answer)
	require.Equal(t, "Code: ", out.String())
	answer, err = prompter.Prompt(context.Background(), Request{Kind: KindSecurityAnswer, Message: "Answer: "})
	require.NoError(t, err)
	require.Equal(t, "second", answer)
	// Input is exhausted.
	_, err = prompter.Prompt(context.Background(), Request{Kind: KindOTP, Message: "Code: "})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTerminalPrompterCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := NewTerminalPrompter(strings.NewReader("x\n"), &out).Prompt(ctx, Request{Kind: KindOTP})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, out.String())
}
