package presenters

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/dank-ditties/internal/repository"
)

// MaxListed caps how many entries a listing reply shows.
const MaxListed = 10

func reply(content string) *discordgo.MessageSend {
	return &discordgo.MessageSend{Content: content}
}

func NowPlaying(url string) *discordgo.MessageSend {
	if url == "" {
		return reply("Nothing is playing")
	}
	return reply("Currently playing: " + url)
}

// Enqueued confirms a request; position is 1 for the next track.
func Enqueued(position int) *discordgo.MessageSend {
	if position <= 1 {
		return reply("Your song has been enqueued and is next in line")
	}
	return reply(fmt.Sprintf("Your song has been enqueued at position %d", position))
}

func Started(started bool) *discordgo.MessageSend {
	if !started {
		return reply("Already playing")
	}
	return reply("Starting the jukebox")
}

func Skipped(skipped bool) *discordgo.MessageSend {
	if !skipped {
		return reply("Nothing is playing")
	}
	return reply("Skipping")
}

func Stopped(stopped bool) *discordgo.MessageSend {
	if !stopped {
		return reply("Not in a voice channel")
	}
	return reply("Stopped, see you next time")
}

func QueueListing(urls []string) *discordgo.MessageSend {
	if len(urls) == 0 {
		return reply("The queue is empty")
	}
	return reply("Up next:\n" + numbered(urls))
}

func PlayHistory(records []repository.PlayRecord) *discordgo.MessageSend {
	if len(records) == 0 {
		return reply("Nothing has been played yet")
	}
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = fmt.Sprintf("%s (%s)", r.URL, r.PlayedAt.UTC().Format("2006-01-02 15:04"))
	}
	return reply("Recently played:\n" + numbered(urls))
}

func Help(prefix string) *discordgo.MessageSend {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range [][2]string{
		{"start", "join your voice channel and start playing"},
		{"skip", "skip the current track"},
		{"info", "show the current track"},
		{"play <url>", "queue a track"},
		{"queue", "list queued tracks"},
		{"stop", "stop playing and leave"},
	} {
		fmt.Fprintf(&b, "`%s %s` %s\n", prefix, c[0], c[1])
	}
	return reply(strings.TrimSuffix(b.String(), "\n"))
}

func Error(message string) *discordgo.MessageSend {
	return reply(message)
}

func numbered(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i == MaxListed {
			fmt.Fprintf(&b, "...and %d more", len(lines)-MaxListed)
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
