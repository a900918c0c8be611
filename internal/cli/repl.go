package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"floodguard-be/pkg/clientstate"
	"floodguard-be/pkg/protocol"
)

// Controller is the part of the client state machine the prompt drives.
type Controller interface {
	Submit(utterance string) error
	SelectProject(p protocol.Project)
	Snapshot() clientstate.State
}

var errQuit = errors.New("quit")

type repl struct {
	ctrl     Controller
	renderer *Renderer
	out      io.Writer
	cellDeg  float64
}

// run reads one utterance or command per line until EOF, /quit or ctx.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if err := r.handle(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintln(r.out, errText.Sprint(err.Error()))
			}
		}
	}
}

func (r *repl) handle(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit" || line == "/exit":
		return errQuit
	case line == "/news":
		fmt.Fprint(r.out, r.renderer.NewsPanel(r.ctrl.Snapshot()))
		return nil
	case strings.HasPrefix(line, "/select"):
		return r.selectProject(strings.TrimSpace(strings.TrimPrefix(line, "/select")))
	case strings.HasPrefix(line, "/"):
		return fmt.Errorf("unknown command %q (try /select <n>, /news, /quit)", line)
	}

	err := r.ctrl.Submit(line)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, clientstate.ErrTurnInFlight):
		return errors.New("a response is still in progress, please wait")
	case errors.Is(err, clientstate.ErrCredentialsMissing), errors.Is(err, clientstate.ErrNotConnected):
		// Already reported in the chat log.
		return nil
	default:
		return err
	}
}

// selectProject activates the n-th listed project through its marker, the
// same path a map click takes.
func (r *repl) selectProject(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("usage: /select <n>")
	}

	view := r.ctrl.Snapshot().MapView(r.cellDeg)
	flat := view.Flatten()
	if n < 1 || n > len(flat) {
		return fmt.Errorf("no project %d on the map (%d listed)", n, len(flat))
	}

	marker, i, ok := view.Locate(flat[n-1].ID)
	if !ok {
		return fmt.Errorf("project %s is not on the map", flat[n-1].ID)
	}
	return marker.Activate(r.ctrl, i)
}
