package printer

import (
	"bytes"
	"html/template"
	"regexp"
	"time"

	"cash-kiosk/models"
)

type Shop struct {
	Name    string
	Branch  string
	Address []string
}

type ReceiptLine struct {
	Quantity  int
	Name      string
	Variation string
	UnitPrice string
	Total     string
}

type Receipt struct {
	Shop        Shop
	Ref         string
	TableNumber string
	OrderNo     string
	OrderType   string
	Lines       []ReceiptLine
	Total       string
	Cash        string
	Change      string
	PrintedAt   time.Time
}

// NewReceipt lays out a created order. Line amounts come from the cart, the
// totals from the order draft.
func NewReceipt(shop Shop, order models.CreatedOrder, cart models.Cart, now time.Time) Receipt {
	r := Receipt{
		Shop:        shop,
		Ref:         receiptRef(order),
		TableNumber: order.Draft.TableNumber,
		OrderNo:     order.OrderNo,
		OrderType:   string(order.Draft.OrderType),
		Total:       models.FormatPeso(order.Draft.TotalPrice),
		Cash:        models.FormatPeso(order.Draft.Cash),
		Change:      models.FormatPeso(order.Draft.Change),
		PrintedAt:   now,
	}
	if r.TableNumber == "" {
		r.TableNumber = "-"
	}
	if r.OrderNo == "" {
		r.OrderNo = "N/A"
	}

	for _, line := range cart {
		r.Lines = append(r.Lines, ReceiptLine{
			Quantity:  line.Quantity,
			Name:      line.Item.Name,
			Variation: line.Variation,
			UnitPrice: models.FormatPeso(line.UnitPrice()),
			Total:     line.Subtotal().StringFixed(2),
		})
	}
	return r
}

var unsafeRef = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func receiptRef(order models.CreatedOrder) string {
	for _, candidate := range []string{order.OrderNo, order.ID, order.Draft.LocalRef} {
		if ref := unsafeRef.ReplaceAllString(candidate, ""); ref != "" {
			return ref
		}
	}
	return "unnumbered"
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Receipt</title>
    <style>
      body { font-family: monospace; padding: 20px; text-align: center; }
      hr { border: 1px dashed #000; margin: 10px 0; }
    </style>
  </head>
  <body>
    <h2 style="margin:5px 0;">{{.Shop.Name}}</h2>
    {{- if .Shop.Branch}}
    <h3 style="margin:0;">{{.Shop.Branch}}</h3>
    {{- end}}
    {{- if .Shop.Address}}
    <p style="font-size:12px;margin:10px 0;">
      {{- range $i, $l := .Shop.Address}}{{if $i}}<br />{{end}}{{$l}}{{end -}}
    </p>
    {{- end}}
    <hr />
    <h3 style="margin:10px 0;">TABLE NUMBER {{.TableNumber}}</h3>
    <hr />
    <h3 style="margin:10px 0;">Order No: {{.OrderNo}}</h3>
    <p style="font-size:12px;"><strong>Order Type:</strong> {{.OrderType}}</p>
    <div style="text-align:left;display:inline-block;width:260px;">
    {{- range .Lines}}
      <div style="margin-bottom:8px;font-size:10px;clear:both;">
        <div>{{.Quantity}} × {{.Name}}{{if .Variation}} ({{.Variation}}){{end}}
          <span style="float:right;">{{.Total}}</span>
        </div>
        <div style="font-size:10px;">{{.UnitPrice}}</div>
      </div>
    {{- end}}
    </div>
    <hr />
    <p style="font-size:12px;"><strong>Total:</strong> {{.Total}}</p>
    <p style="font-size:12px;"><strong>Cash:</strong> {{.Cash}}</p>
    <p style="font-size:12px;"><strong>Change:</strong> {{.Change}}</p>
    <hr />
    <div style="margin-top:20px;text-align:center;">
      <p style="font-size:14px;margin:0;">Thank You</p>
      <p style="font-size:14px;margin:0;">Please Come Again!</p>
    </div>
    <p style="font-size:10px;margin-top:20px;">Printed at {{.PrintedAt.Format "2006-01-02 15:04:05"}}</p>
  </body>
</html>
`))

// Render produces the HTML receipt document.
func Render(r Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
