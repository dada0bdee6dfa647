package relaytest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/haldor/relay/internal/baselib/relay"
)

// ToMarkdown renders the chain as a nested markdown list, one bullet per
// event showing its name and the sender/receiver pair, indented by tree
// depth. It is the markdown counterpart of ToMermaid, meant for embedding in
// a test failure message or a generated report.
func (c *Chain[E, T]) ToMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Event chain (root `%s`)\n\n", c.rootID)

	if _, ok := c.chainIDs[c.rootID]; !ok {
		b.WriteString("_(empty)_\n")
		return b.String()
	}

	entryByID := make(map[uuid.UUID]Entry[E, T])
	for _, e := range c.chainEntries() {
		if _, ok := entryByID[e.ID()]; !ok {
			entryByID[e.ID()] = e
		}
	}

	c.writeMarkdownNode(&b, entryByID, c.rootID, 0)
	return b.String()
}

func (c *Chain[E, T]) writeMarkdownNode(
	b *strings.Builder, entryByID map[uuid.UUID]Entry[E, T], id uuid.UUID, depth int,
) {
	entry, ok := entryByID[id]
	if !ok {
		return
	}

	fmt.Fprintf(b, "%s- %s: `%s` -> `%s`\n",
		strings.Repeat("  ", depth), entry.Payload().Name(), entry.Sender(), entry.Receiver)

	for _, childID := range c.children[id] {
		c.writeMarkdownNode(b, entryByID, childID, depth+1)
	}
}

// RenderHTML converts a chain's markdown summary to HTML using goldmark, for
// embedding chain reports in a generated test-run page.
func RenderHTML[E relay.Event, T relay.Topic](c *Chain[E, T]) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(c.ToMarkdown()), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
