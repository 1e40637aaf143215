package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// fromHTML extracts the readable article text from an HTML document. When
// readability cannot find an article the raw markup is decoded as plain text
// so text/html stays a superset of text/plain.
func fromHTML(data []byte, filename string) (string, error) {
	pageURL, _ := url.Parse("file:///" + filename)
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return fromText(data)
	}
	return strings.TrimRight(article.TextContent, " \t\r\n"), nil
}
