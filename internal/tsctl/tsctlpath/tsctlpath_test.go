// Copyright 2026 Peter Edge
//
// All rights reserved.

package tsctlpath

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	t.Parallel()
	require.Equal(t, filepath.Join("base", "tsctl.yaml"), ConfigFilePath("base"))
	require.Equal(t, filepath.Join("base", "tokens"), TokensDirPath("base"))
	require.Equal(t, filepath.Join("base", "tokens", "abc123.json"), TokenFilePath("base", "abc123"))
	require.Equal(t, filepath.Join("base", "cache", "fx"), CacheFXDirPath("base"))
	require.Equal(
		t,
		filepath.Join("base", "transactions", "2024-03-01_2024-03-05.jsonl"),
		TransactionsFilePath(
			"base",
			xtime.Date{Year: 2024, Month: time.March, Day: 1},
			xtime.Date{Year: 2024, Month: time.March, Day: 5},
		),
	)
}
