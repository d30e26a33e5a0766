package testutil

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// Execute runs c with args and returns what it printed on stdout, trimmed.
// Commands printing with fmt bypass cobra's writers, so os.Stdout is
// redirected for the duration of the call.
func Execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	captured := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		captured <- buf.String()
	}()

	c.SetArgs(args)
	err = c.Execute()

	w.Close()
	out := <-captured
	r.Close()

	return strings.TrimSpace(out), err
}
