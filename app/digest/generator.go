// Package digest renders stored content as an RSS 2.0 feed.
package digest

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/crawlai/crawl-engine/app/database"
)

type Channel struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	Generator   string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run writes contents in the given order. Matched categories become RSS
// categories and the importance score is exposed as a category too.
func (g *Generator) Run(channel Channel, contents []database.Content) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, "Relevant content collected by the crawl engine"), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(contents) > 0 {
		lastBuildDate = contents[0].CollectedAt.In(time.Local)
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", channel.Generator, 4)

	for _, c := range contents {
		g.writeItem(&buf, c)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, c database.Content) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(c.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", c.Title, 6)
	g.writeElement(buf, "link", c.URL, 6)
	g.writeElement(buf, "description", cmp.Or(c.Summary, excerpt(c.Body), "No description available"), 6)

	published := c.CollectedAt
	if c.PublishedAt != nil {
		published = *c.PublishedAt
	}
	g.writeElement(buf, "pubDate", published.In(time.Local).Format(time.RFC1123Z), 6)

	for _, category := range c.Categories {
		g.writeElement(buf, "category", category, 6)
	}
	g.writeElement(buf, "category", fmt.Sprintf("score:%.2f", c.ImportanceScore), 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

const excerptRunes = 300

func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= excerptRunes {
		return body
	}
	return string(runes[:excerptRunes]) + "…"
}
