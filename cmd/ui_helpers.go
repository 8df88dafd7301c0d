package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	"airplan/cli/internal/catalog"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
	"airplan/cli/internal/terminal"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal. Nothing is drawn when w is not a terminal.
//
// Returns a function that stops the spinner and cleans up when called.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	if !terminal.IsTerminal(w) {
		return func() {}
	}
	cursor.Hide()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				if width := terminal.Width(); len(line) >= width {
					line = line[:width-1]
				}
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
		cursor.Show()
	}
}

// withSpinner runs fn while a spinner with text is shown on stderr.
func withSpinner[T any](text string, fn func() T) T {
	stop := startInlineSpinner(os.Stderr, text, spinnerFrames, 100*time.Millisecond)
	defer stop()
	return fn()
}

// renderFanOut prints one row per profile and a summary line. It returns an
// error only when the write reached no server.
func renderFanOut(what string, res router.FanOutResult) error {
	if res.Err != nil {
		return res.Err
	}

	data := pterm.TableData{{"Server", "Status", "Rows", "Insert ID", "Path", "Time"}}
	for _, a := range res.Results {
		status := pterm.Green("ok")
		if !a.OK {
			status = pterm.Red("failed")
		}
		id := ""
		if a.HasInsertID {
			id = strconv.FormatInt(a.LastInsertID, 10)
		}
		path := "update"
		if a.Inserted {
			path = "insert"
		}
		if !a.OK {
			path = ""
		}
		data = append(data, []string{a.Profile, status, strconv.FormatInt(a.RowsAffected, 10), id, path, a.Elapsed.Round(time.Millisecond).String()})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	for _, a := range res.Failed() {
		pterm.Println(logging.FormatDBError(a.Profile, a.Err))
	}

	switch {
	case res.AllSucceeded():
		pterm.Success.Printfln("%s applied on all %d servers", what, res.Total())
	case res.AnySucceeded():
		pterm.Warning.Printfln("%s applied on %s; the failed servers are out of date", what, res.Summary())
	default:
		return fmt.Errorf("%s failed on every server (%d attempted), retry when the servers are reachable", what, res.Total())
	}
	return nil
}

// writeErr drops ErrRejected once renderFanOut has reported it.
func writeErr(what string, res router.FanOutResult, err error) error {
	if err != nil && res.Total() == 0 {
		return err
	}
	return renderFanOut(what, res)
}

// renderResult prints a tabular result.
func renderResult(res sqlexec.Result) {
	if len(res.Columns) == 0 {
		pterm.Info.Println("no rows")
		return
	}
	data := pterm.TableData{res.Columns}
	data = append(data, res.Strings()...)
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// readErr turns a disconnected read into user guidance.
func readErr(err error) error {
	if errors.Is(err, catalog.ErrDisconnected) || errors.Is(err, router.ErrAllProfilesFailed) {
		return fmt.Errorf("disconnected: none of the first %d servers answered, check `airplan ping`", router.MaxReadFanOut)
	}
	return err
}
