package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
)

const reviewHelp = `commands:
  a [reason, reason]   accept the current card
  r [reason, reason]   reject the current card
  u                    undo the last decision
  n                    continue: start review, or move to the next phase
  t                    retry a failed phase
  m <contact-id> up|down   move a ranked contact
  c                    confirm the ranking and complete the mission
  s                    show status
  q                    quit (progress is saved)`

// runReview drives a mission from line commands on in. Invalid commands are
// reported and the loop continues; it returns when in is exhausted, on q,
// or once the mission is closed.
func runReview(ctx context.Context, o *mission.Orchestrator, in io.Reader, out io.Writer) error {
	show := func() {
		st, err := o.Status()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return
		}
		cur := st.Current
		fmt.Fprintf(out, "\n%s: %s", cur.Phase, cur.State)
		if cur.Progress.TotalCards > 0 {
			fmt.Fprintf(out, " (%d/%d)", cur.Progress.CurrentCard, cur.Progress.TotalCards)
		}
		fmt.Fprintln(out)
		if cur.Message != "" {
			fmt.Fprintln(out, cur.Message)
		}
		if cur.Warning != "" {
			fmt.Fprintln(out, cur.Warning)
		}
		switch cur.State {
		case phase.StateResults, phase.StateSummary:
			printAnalytics(out, cur)
		}
		if card, ok := o.Card(); ok {
			printCard(out, card)
		}
		if cur.Phase == model.PhaseRanking && cur.State != phase.StateIdle {
			printContacts(out, o.Ranked())
		}
	}

	show()
	fmt.Fprintln(out, "type ? for commands")

	sc := bufio.NewScanner(in)
	for {
		if closed(o) {
			fmt.Fprintln(out, "mission closed")
			return nil
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		var err error
		switch cmd {
		case "a", "r":
			action := model.ActionAccept
			if cmd == "r" {
				action = model.ActionReject
			}
			_, err = o.Decide(ctx, action, splitReasons(rest)...)
		case "u":
			_, err = o.Undo(ctx)
		case "n":
			err = o.Advance(ctx)
		case "t":
			err = o.Retry(ctx)
		case "m":
			f := strings.Fields(rest)
			if len(f) != 2 {
				fmt.Fprintln(out, "usage: m <contact-id> up|down")
				continue
			}
			err = o.Move(ctx, f[0], phase.Direction(f[1]))
		case "c":
			err = o.ConfirmRanking(ctx)
		case "s":
		case "?", "h", "help":
			fmt.Fprintln(out, reviewHelp)
			continue
		case "q":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q, type ? for commands\n", cmd)
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		show()
	}
}

func splitReasons(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func closed(o *mission.Orchestrator) bool {
	st, err := o.Status()
	return err == nil && st.Mission.Status != model.MissionStatusActive
}
