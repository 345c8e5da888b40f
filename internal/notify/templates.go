package notify

import (
	"bytes"
	"html/template"
)

type shippedEmail struct {
	BuyerName      string
	OrderNumber    string
	TrackingNumber string
	TrackingURL    string
	Total          string
}

type pickupEmail struct {
	BuyerName   string
	OrderNumber string
	Carrier     string
	Total       string
}

type deliveredEmail struct {
	Name         string
	OrderNumber  string
	DeliveryDate string
}

type labelEmail struct {
	SellerName  string
	BuyerName   string
	OrderNumber string
	Carrier     string
	LabelURL    string
}

var tmplOrderShipped = template.Must(template.New("order_shipped").Parse(`<html><body>
<p>Hi {{.BuyerName}},</p>
<p>Your order <strong>#{{.OrderNumber}}</strong> has been shipped.</p>
{{if .TrackingNumber}}<p>Tracking number: {{.TrackingNumber}}</p>{{end}}
{{if .TrackingURL}}<p><a href="{{.TrackingURL}}">Track your parcel</a></p>{{end}}
<p>Order total: £{{.Total}}</p>
</body></html>`))

var tmplReadyForPickup = template.Must(template.New("order_ready_pickup").Parse(`<html><body>
<p>Hi {{.BuyerName}},</p>
<p>Your order <strong>#{{.OrderNumber}}</strong> is ready for pickup via {{.Carrier}}.</p>
<p>Order total: £{{.Total}}</p>
</body></html>`))

var tmplSellerDelivered = template.Must(template.New("seller_order_delivered").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Order <strong>#{{.OrderNumber}}</strong> was delivered on {{.DeliveryDate}}.</p>
<p>The buyer now has a chance to review the item before the sale completes.</p>
</body></html>`))

var tmplBuyerDelivered = template.Must(template.New("buyer_order_delivered").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Your order <strong>#{{.OrderNumber}}</strong> was delivered on {{.DeliveryDate}}.</p>
<p>Please confirm everything is as described.</p>
</body></html>`))

var tmplShippingLabel = template.Must(template.New("shipping_label").Parse(`<html><body>
<p>Hi {{.SellerName}},</p>
<p>The shipping label for order <strong>#{{.OrderNumber}}</strong> (buyer: {{.BuyerName}}) is ready.</p>
<p>Carrier: {{.Carrier}}</p>
{{if .LabelURL}}<p><a href="{{.LabelURL}}">Download label</a></p>{{end}}
</body></html>`))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
