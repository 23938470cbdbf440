package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	jobsCLI, err := NewJobsCLI("127.0.0.1:6379")
	require.NoError(t, err)
	defer func() { _ = jobsCLI.Close() }()

	_, err = jobsCLI.Trigger(context.Background(), "finance:close")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")
}

func TestUnconfiguredCLIErrors(t *testing.T) {
	var jobsCLI *JobsCLI

	_, err := jobsCLI.Trigger(context.Background(), "stock:lowstock_scan")
	require.Error(t, err)

	_, err = jobsCLI.InspectQueue(context.Background())
	require.Error(t, err)

	_, err = jobsCLI.ListScheduled(context.Background(), 5)
	require.Error(t, err)
}
