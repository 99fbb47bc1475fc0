// Package report renders card listings for export
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/beevik/etree"
)

// ContentTypeXML is the content type of the card export
const ContentTypeXML = "application/xml; charset=utf-8"

// BuildCardsDocument builds an XML document listing the cards. Card numbers
// are written as given, callers pass masked views.
func BuildCardsDocument(cards []models.CardView, generatedAt time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("cards")
	root.CreateAttr("generatedAt", generatedAt.UTC().Format(time.RFC3339))
	root.CreateAttr("count", strconv.Itoa(len(cards)))

	for _, c := range cards {
		el := root.CreateElement("card")
		el.CreateAttr("id", c.ID.String())
		el.CreateElement("owner").SetText(c.OwnerName)
		el.CreateElement("number").SetText(c.CardNumber)
		el.CreateElement("expirationDate").SetText(c.ExpirationDate)
		el.CreateElement("status").SetText(string(c.Status))
		el.CreateElement("balance").SetText(c.Balance.StringFixed(2))
	}

	doc.Indent(2)
	return doc
}

// WriteCardsXML writes the card export to w
func WriteCardsXML(w io.Writer, cards []models.CardView, generatedAt time.Time) error {
	if _, err := BuildCardsDocument(cards, generatedAt).WriteTo(w); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}
