package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/topic-digest/internal/llm"
)

type fixedClient struct {
	text string
	err  error
}

func (c fixedClient) Generate(context.Context, llm.Request) (string, error) { return c.text, c.err }
func (c fixedClient) Close() error                                        { return nil }

func TestPrintTerms(t *testing.T) {
	tests := []struct {
		name   string
		client fixedClient
		want   string
	}{
		{
			name:   "generated",
			client: fixedClient{text: "1. goroutines\n2. channels\n3. select statement"},
			want:   "goroutines\nchannels\n",
		},
		{
			name:   "fallback",
			client: fixedClient{err: errors.New("unavailable")},
			want:   "go concurrency tutorial\ngo concurrency documentation\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)
			cmd.SetErr(&errOut)
			cmd.SetContext(context.Background())

			require.NoError(t, printTerms(cmd, tt.client, "go concurrency", 2, 100, false))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestPrintTerms_Verbose(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetContext(context.Background())

	require.NoError(t, printTerms(cmd, fixedClient{text: "1. goroutines"}, "go", 1, 100, true))
	assert.Contains(t, out.String(), "SEARCH TERMS")
	assert.Contains(t, out.String(), "1. goroutines")
}
