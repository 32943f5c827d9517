package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestTornIDFromMember(t *testing.T) {
	tests := []struct {
		nick string
		user string
		want int64
	}{
		{"Rick [2052016]", "", 2052016},
		{"Rick [2052016]  ", "", 2052016},
		{"Some [1] Guy [42]", "", 42},
		{"", "daryl [777]", 777},
		{"NoIDHere", "also_none", 0},
		{"Rick [12345678901]", "", 0}, // over ten digits
	}
	for _, tt := range tests {
		m := &discordgo.Member{Nick: tt.nick, User: &discordgo.User{Username: tt.user}}
		assert.Equal(t, tt.want, tornIDFromMember(m), "nick %q user %q", tt.nick, tt.user)
	}
	assert.Zero(t, tornIDFromMember(nil))
}

func TestChunkLinesRespectsLimit(t *testing.T) {
	lines := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	chunks := chunkLines(lines, 90)
	assert.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 90)
	}
	assert.Equal(t, strings.Join(lines, "\n"), strings.Join(chunks, "\n"))
}

func TestChunkMentionsNeverSplitsAMention(t *testing.T) {
	mentions := []string{"<@1>", "<@22>", "<@333>", "<@4444>"}
	chunks := chunkMentions(mentions, 12)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 12)
	}
	assert.Equal(t, strings.Join(mentions, " "), strings.Join(chunks, " "))
}

func TestFmtFF(t *testing.T) {
	assert.Equal(t, "n/a", fmtFF(0, false))
	assert.Equal(t, "1.75", fmtFF(1.75, true))
}

func TestHelpLinesListEveryCommand(t *testing.T) {
	b := &Bot{}
	defs := b.getCommandDefinitions()
	help := strings.Join(helpLines(defs), "\n")
	for _, def := range defs {
		assert.Contains(t, help, "`/"+def.Name+"`", "command %s missing from help", def.Name)
	}
	assert.Contains(t, help, "`/chain start`")
}

func TestRandomNeganQuote(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Contains(t, neganQuotes, randomNeganQuote())
	}
}

func TestPresenceActive(t *testing.T) {
	assert.True(t, presenceActive(discordgo.StatusOnline))
	assert.True(t, presenceActive(discordgo.StatusIdle))
	assert.True(t, presenceActive(discordgo.StatusDoNotDisturb))
	assert.False(t, presenceActive(discordgo.StatusOffline))
	assert.False(t, presenceActive(discordgo.StatusInvisible))
}

func TestHasAnyRoleID(t *testing.T) {
	m := &discordgo.Member{Roles: []string{"a", "b"}}
	assert.True(t, hasAnyRoleID(m, map[string]bool{"b": true}))
	assert.False(t, hasAnyRoleID(m, map[string]bool{"c": true}))
	assert.False(t, hasAnyRoleID(m, nil))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0", formatMoney(0))
	assert.Equal(t, "999", formatMoney(999))
	assert.Equal(t, "1,000", formatMoney(1000))
	assert.Equal(t, "1,234,567,890", formatMoney(1234567890))
	assert.Equal(t, "-12,345", formatMoney(-12345))
}
