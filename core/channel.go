package core

import (
	"fmt"
	"strings"
)

// Channel is one named external data source category.
type Channel int

const (
	ChannelWeb Channel = iota
	ChannelNews
	ChannelFinance
	ChannelLeadership
	ChannelTalent
	ChannelCompetitors
	ChannelWikipedia

	channelCount
)

// ChannelMeta is the display metadata attached to activity events.
type ChannelMeta struct {
	Agent  string `json:"agent"`
	Source string `json:"source"`
	Emoji  string `json:"emoji"`
}

var channelIDs = [...]string{
	ChannelWeb:         "web",
	ChannelNews:        "news",
	ChannelFinance:     "finance",
	ChannelLeadership:  "leadership",
	ChannelTalent:      "talent",
	ChannelCompetitors: "competitors",
	ChannelWikipedia:   "wikipedia",
}

var channelMeta = [...]ChannelMeta{
	ChannelWeb:         {Agent: "Web Scout", Source: "DuckDuckGo", Emoji: "🔎"},
	ChannelNews:        {Agent: "News Radar", Source: "Google News", Emoji: "📰"},
	ChannelFinance:     {Agent: "Finance Lens", Source: "Financial filings", Emoji: "📈"},
	ChannelLeadership:  {Agent: "Org Mapper", Source: "Executive bios", Emoji: "🤝"},
	ChannelTalent:      {Agent: "Talent Scout", Source: "Hiring trackers", Emoji: "🧠"},
	ChannelCompetitors: {Agent: "Battlecard", Source: "Competitive intel", Emoji: "⚔️"},
	ChannelWikipedia:   {Agent: "Knowledge Base", Source: "Wikipedia", Emoji: "📚"},
}

// Default query templates; %s is the company name.
var channelQueries = [...]string{
	ChannelWeb:         "%s enterprise go-to-market",
	ChannelNews:        "%s latest earnings and partnerships",
	ChannelFinance:     "%s revenue guidance",
	ChannelLeadership:  "%s executive priorities",
	ChannelTalent:      "%s hiring plans",
	ChannelCompetitors: "%s competitive landscape",
	ChannelWikipedia:   "%s",
}

var (
	_ = [1]struct{}{}[len(channelIDs)-int(channelCount)]
	_ = [1]struct{}{}[len(channelMeta)-int(channelCount)]
	_ = [1]struct{}{}[len(channelQueries)-int(channelCount)]
)

// MandatoryChannels is the baseline every research sweep covers regardless
// of what the routing step proposes.
func MandatoryChannels() []Channel {
	return []Channel{
		ChannelWeb,
		ChannelNews,
		ChannelFinance,
		ChannelLeadership,
		ChannelTalent,
		ChannelCompetitors,
		ChannelWikipedia,
	}
}

// Channels returns every known channel.
func Channels() []Channel {
	out := make([]Channel, 0, channelCount)
	for c := Channel(0); c < channelCount; c++ {
		out = append(out, c)
	}
	return out
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelIDs[c]
}

// Valid reports whether c is one of the enumerated channels.
func (c Channel) Valid() bool { return c >= 0 && c < channelCount }

// Meta returns the display metadata of the channel.
func (c Channel) Meta() ChannelMeta { return channelMeta[c] }

// DefaultQuery returns the baseline query for the company on this channel.
func (c Channel) DefaultQuery(company string) string {
	if strings.TrimSpace(company) == "" {
		company = "the company"
	}
	return fmt.Sprintf(channelQueries[c], company)
}

// DefaultGoal is the goal attached to backfilled mandatory tasks.
func (c Channel) DefaultGoal() string {
	return fmt.Sprintf("Baseline %s insights", channelIDs[c])
}

// ParseChannel parses a channel identifier, case-insensitively.
func ParseChannel(v string) (Channel, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	for i, id := range channelIDs {
		if id == key {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (c Channel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid channel %d", int(c))
	}
	return []byte(channelIDs[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
