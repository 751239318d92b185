package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/roach88/cartsync/internal/cart"
)

// priceFormatter renders amounts with the locale's digit grouping and two
// fraction digits.
type priceFormatter struct {
	p *message.Printer
}

func newPriceFormatter(locale string) priceFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return priceFormatter{p: message.NewPrinter(tag)}
}

// Format returns d as a localized string. The zero formatter uses en-US.
func (f priceFormatter) Format(d decimal.Decimal) string {
	p := f.p
	if p == nil {
		p = message.NewPrinter(language.AmericanEnglish)
	}
	return p.Sprint(number.Decimal(d.InexactFloat64(),
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}

// lineView is one cart line as printed by the CLI.
type lineView struct {
	LineID     string `json:"lineId,omitempty"`
	FoodItemID string `json:"foodItemId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
	Total      string `json:"total"`

	price, total decimal.Decimal
}

// cartView is the printed form of a snapshot. Amounts are exact decimal
// strings in JSON and localized in text.
type cartView struct {
	SessionID       string     `json:"sessionId"`
	Ephemeral       bool       `json:"ephemeral,omitempty"`
	Version         int64      `json:"version"`
	Lines           []lineView `json:"lines"`
	ItemCount       int        `json:"itemCount"`
	Subtotal        string     `json:"subtotal"`
	DeliveryCharges string     `json:"deliveryCharges"`
	Total           string     `json:"total"`
	Rejected        int64      `json:"rejected,omitempty"`

	subtotal, delivery, total decimal.Decimal
}

func newCartView(sessionID string, snap cart.Snapshot) cartView {
	v := cartView{
		SessionID:       sessionID,
		Version:         snap.Version,
		Lines:           make([]lineView, 0, len(snap.Lines)),
		ItemCount:       snap.ItemCount(),
		Subtotal:        snap.Subtotal().String(),
		DeliveryCharges: snap.DeliveryCharges.String(),
		Total:           snap.Total().String(),
		subtotal:        snap.Subtotal(),
		delivery:        snap.DeliveryCharges,
		total:           snap.Total(),
	}
	for _, l := range snap.Lines {
		v.Lines = append(v.Lines, lineView{
			LineID:     l.ID,
			FoodItemID: l.FoodItemID,
			Name:       l.FoodItem.Name,
			Quantity:   l.Quantity,
			Price:      l.FoodItem.Price.String(),
			Total:      l.Total().String(),
			price:      l.FoodItem.Price,
			total:      l.Total(),
		})
	}
	return v
}

func (v cartView) renderText(w io.Writer, prices priceFormatter) {
	fmt.Fprintf(w, "session %s (version %d)\n", v.SessionID, v.Version)
	if v.Ephemeral {
		fmt.Fprintln(w, "warning: session id is not persisted")
	}
	if len(v.Lines) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	for _, l := range v.Lines {
		fmt.Fprintf(w, "  %-12s %-20s %3d x %10s %12s\n",
			l.FoodItemID, l.Name, l.Quantity, prices.Format(l.price), prices.Format(l.total))
	}
	fmt.Fprintf(w, "items     %d\n", v.ItemCount)
	fmt.Fprintf(w, "subtotal  %s\n", prices.Format(v.subtotal))
	fmt.Fprintf(w, "delivery  %s\n", prices.Format(v.delivery))
	fmt.Fprintf(w, "total     %s\n", prices.Format(v.total))
	if v.Rejected > 0 {
		fmt.Fprintf(w, "%d change(s) rejected by the server\n", v.Rejected)
	}
}

// sessionView is the output of the session command.
type sessionView struct {
	SessionID string `json:"sessionId"`
	Store     string `json:"store"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

func (v sessionView) renderText(w io.Writer, _ priceFormatter) {
	fmt.Fprintln(w, v.SessionID)
	if v.Ephemeral {
		fmt.Fprintf(w, "warning: %s storage unavailable, session id is not persisted\n", v.Store)
	}
}
