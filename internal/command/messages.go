package command

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/foxseedlab/wrapup/internal/scan"
)

const (
	slashCommandScanDescription     = "Count server activity since a date"
	slashCommandScanDateDescription = "Start date (DD-MM-YYYY)"
	slashCommandWrapupDescription   = "Generate your year-end stats summary!"

	messageWrongGuild     = ":warning: **This command is not available in this server.**"
	messageUnknownCommand = ":warning: **Unknown command.**"
	messageInvalidDate    = "❌ Invalid date format. Use DD-MM-YYYY (e.g., 25-12-2024)"
	messageScanRunning    = ":hourglass: **A scan is already running.** Try again when it finishes."
	messageScanFailed     = ":warning: **The scan failed.** Please try again later."
	messageWrapupFailed   = ":warning: **Could not load your stats.** Please try again later."
	messageNoEmoji        = "You haven't used any emojis yet!"
	messageNoTopEmoji     = "You haven't used enough emojis for a top list yet!"
	messagePrivacyNote    = "-# Privacy note: only metadata (who/when/where) was saved."
)

func scanReply(res *scan.Result, since string) string {
	s := res.Summary
	lines := []string{
		fmt.Sprintf("📊 **Scan Results since %s**", since),
		"",
		fmt.Sprintf("✉️ **Total Messages:** %s", humanize.Comma(s.MessageCount)),
		fmt.Sprintf("👥 **Unique Users:** %s", humanize.Comma(int64(s.UniqueAuthors()))),
		fmt.Sprintf("🏗️ **Channels Scanned:** %s", channelsScannedText(res)),
		fmt.Sprintf("🔥 **Most Active:** %s", mostActiveText(s)),
		fmt.Sprintf("✨ **Top Emoji:** %s", topEmojiText(s)),
		fmt.Sprintf("🗄️ **Database Total:** %s", humanize.Comma(res.DatabaseTotal)),
	}
	if len(res.Warnings) > 0 {
		names := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			names = append(names, "#"+w.ChannelName)
		}
		lines = append(lines, fmt.Sprintf("⚠️ **Could not read %s:** %s",
			english.Plural(len(res.Warnings), "channel", ""), strings.Join(names, ", ")))
	}
	if res.Interrupted {
		lines = append(lines, "⏹️ **The scan stopped early; results are partial.**")
	}
	if res.Writes.FailedRows > 0 {
		lines = append(lines, fmt.Sprintf("-# %s could not be archived.", english.Plural(res.Writes.FailedRows, "message", "")))
	}
	lines = append(lines, "", messagePrivacyNote)
	return strings.Join(lines, "\n")
}

func channelsScannedText(res *scan.Result) string {
	text := humanize.Comma(int64(res.ChannelsScanned))
	if res.ChannelsSkipped > 0 {
		text += fmt.Sprintf(" (%s skipped)", humanize.Comma(int64(res.ChannelsSkipped)))
	}
	return text
}

func mostActiveText(s *scan.Summary) string {
	top := s.TopSource()
	if top == scan.NoSource {
		return top
	}
	return "#" + top
}

func topEmojiText(s *scan.Summary) string {
	token, n := s.TopEmoji()
	if token == scan.NoEmoji {
		return token
	}
	return fmt.Sprintf("%s **%s**", token, humanize.Comma(n))
}

func wrapupReply(userName string, total int64, top []repository.EmojiCount) string {
	if total == 0 {
		return messageNoEmoji
	}
	lines := []string{
		fmt.Sprintf("✨ **%s's Wrapup Preview** ✨", userName),
		fmt.Sprintf("You used **%s** this year,", english.Plural(int(total), "emoji", "emojis")),
	}
	if len(top) == 0 {
		return strings.Join(append(lines, messageNoTopEmoji), "\n")
	}
	lines = append(lines, "Your favorite emojis were:", "")
	for i, e := range top {
		lines = append(lines, fmt.Sprintf("#%d %s - You used this %s", i+1, e.Emoji, english.Plural(int(e.Count), "time", "")))
	}
	return strings.Join(lines, "\n")
}
