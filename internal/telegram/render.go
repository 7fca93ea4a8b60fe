package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/models"
)

// Render turns a controller event into message text.
func Render(ev game.Event) string {
	var b strings.Builder
	switch ev.Type {
	case game.EventRoleAssigned:
		if ev.Imposter {
			b.WriteString("You are the IMPOSTER.\nYou do not know the topic. Blend in and survive the vote.")
		} else {
			fmt.Fprintf(&b, "You are INNOCENT.\nThe topic is: %s\nFind the imposter without giving it away.", ev.Topic)
		}
		if ev.GroupLink != "" {
			fmt.Fprintf(&b, "\n\nJoin the group: %s", ev.GroupLink)
		}

	case game.EventGameStarted:
		fmt.Fprintf(&b, "Roles have been sent. %d players, %d imposter(s).\n\n", len(ev.Players), ev.ImposterCount)
		writeRoster(&b, ev.Players)

	case game.EventVoteStarted:
		fmt.Fprintf(&b, "Voting started! You have %s to vote.\n\nSend one of:\n", formatDuration(ev.VoteTime))
		for _, p := range ev.Players {
			fmt.Fprintf(&b, "/voteimposter_%s - %s\n", p.Ref(), p.DisplayName())
		}

	case game.EventVoteResult:
		writeVoteResult(&b, ev)

	case game.EventGameEnded:
		switch ev.Winner {
		case models.WinnerInnocents:
			b.WriteString("Innocents win! Every imposter was found.\n")
		case models.WinnerImposters:
			b.WriteString("Imposters win! They outnumber the innocents.\n")
		default:
			b.WriteString("The game was ended by an admin.\n")
		}
		fmt.Fprintf(&b, "Topic: %s\nImposter(s): %s", ev.Topic, names(ev.Imposters))

	case game.EventGameReset:
		b.WriteString("The lobby was reset. Send /start to join.")

	case game.EventAdminMessage:
		fmt.Fprintf(&b, "Message from %s:\n%s", ev.From, ev.Text)

	default:
		fmt.Fprintf(&b, "%s", ev.Type)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeVoteResult(b *strings.Builder, ev game.Event) {
	if ev.NoVotes || ev.Eliminated == nil {
		b.WriteString("Voting ended with no votes. No one was eliminated.")
		return
	}
	role := "innocent"
	if ev.WasImposter {
		role = "an IMPOSTER"
	}
	fmt.Fprintf(b, "%s was eliminated with %d vote(s) and was %s.\n", ev.Eliminated.DisplayName(), ev.Votes, role)
	if ev.Winner == models.WinnerNone {
		fmt.Fprintf(b, "Remaining: %d imposter(s), %d innocent(s). The game continues.", ev.RemainingImposters, ev.RemainingInnocents)
	}
}

func writeRoster(b *strings.Builder, players []models.Player) {
	for i, p := range players {
		fmt.Fprintf(b, "%d. %s", i+1, p.DisplayName())
		if p.Eliminated {
			b.WriteString(" (eliminated)")
		}
		b.WriteString("\n")
	}
}

// RenderStatus renders the public part of a status projection. It never shows the topic.
func RenderStatus(st models.Status) string {
	var b strings.Builder
	switch {
	case st.Voting != nil:
		fmt.Fprintf(&b, "Voting in progress: %d/%d votes, closes %s\n", st.Voting.VotesCast, st.Voting.Eligible, st.Voting.Deadline.Format(time.Kitchen))
	case st.RolesDistributed:
		fmt.Fprintf(&b, "Game running: %d imposter(s), %d innocent(s) left\n", st.ActiveImposters, st.ActiveInnocents)
	case st.Started:
		b.WriteString("Game prepared, roles not sent yet\n")
	default:
		fmt.Fprintf(&b, "Lobby open, %d/%d players needed\n", st.TotalPlayers, st.Settings.MinPlayers)
	}
	fmt.Fprintf(&b, "Vote time: %s, online mode: %t\n\n", formatDuration(st.Settings.VoteDuration()), st.Settings.OnlineMode)
	if len(st.Players) == 0 {
		b.WriteString("No players yet.")
	}
	writeRoster(&b, st.Players)
	return strings.TrimRight(b.String(), "\n")
}

func names(players []models.Player) string {
	if len(players) == 0 {
		return "none"
	}
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.DisplayName()
	}
	return strings.Join(out, ", ")
}

// formatDuration renders whole minutes and seconds, e.g. "2m", "1m 30s", "45s".
func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	m, s := secs/60, secs%60
	switch {
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
