package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText flattens the text content of a selection, strips
// non-printable characters and collapses runs of whitespace. Legacy
// ASP.NET pages are full of &nbsp; and layout newlines inside cells.
func CleanText(sel *goquery.Selection) string {
	var flattened bytes.Buffer
	for _, node := range sel.Nodes {
		flattened.WriteString(GetText(node))
	}
	text := flattened.String()
	text = strings.ReplaceAll(text, " ", " ")
	text = removeNonPrintable(text)
	text = strings.Trim(text, " \t\n")
	return innerWhitespace.ReplaceAllString(text, " ")
}

// TableRows returns every table row in the document as a flat list of
// cell texts (<td> and <th> alike, nested markup stripped). Rows
// without any cells are omitted. doc.Find("tr") rather than per-table
// traversal so rows inside nested layout tables are not visited twice.
func TableRows(doc *goquery.Document) [][]string {
	var rows [][]string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, CleanText(cell))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}

// FlatText returns the whole document body as cleaned plain text. Used
// by the single-day detail scrape which matches patterns rather than
// table structure.
func FlatText(doc *goquery.Document) string {
	return CleanText(doc.Selection)
}
