package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Confirm asks a yes/no question and reads one line from in. The read runs
// in its own goroutine so a canceled context returns immediately.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprint(out, WarningStyle.Render(question+" [y/N] ")); err != nil {
		return false, err
	}

	type result struct {
		err  error
		line string
	}
	resultCh := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		resultCh <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ErrInputCancelled
	case res := <-resultCh:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return false, res.err
		}
		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes", "예", "네":
			return true, nil
		}
		return false, nil
	}
}
