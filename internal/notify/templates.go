package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/smartdepot/storefront/internal/domain"
)

const brand = "SmartDepot"

var funcs = template.FuncMap{
	"money":    domain.FormatCents,
	"subtotal": itemSubtotal,
}

func itemSubtotal(i domain.OrderItem) string {
	return domain.FormatCents(i.SubtotalCents())
}

const layoutHead = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`
const layoutFoot = `<p style="color:#666;font-size:12px;margin-top:40px;border-top:1px solid #ddd;padding-top:20px;">
Thank you!<br>The SmartDepot team<br>contact@smartdepot.ro</p></div>`

var (
	orderConfirmationTmpl = template.Must(template.New("order").Funcs(funcs).Parse(layoutHead + `
<h2 style="color:#FF6B35;">SmartDepot - Order confirmation</h2>
<p>Hi{{if .Name}} {{.Name}}{{end}}! Your order <strong>#{{.Order.ID}}</strong> has been registered.</p>
{{if .Paid}}<p style="color:#2e7d32;">Your payment was processed successfully.</p>{{end}}
<div style="background:#f9f9f9;padding:15px;border-radius:8px;margin:20px 0;">
<p><strong>Shipping address:</strong> {{if .Order.Address}}{{.Order.Address}}{{else}}store pickup{{end}}</p>
<p><strong>{{if .Paid}}Total paid{{else}}Total{{end}}:</strong> {{money .Order.TotalCents}} Lei</p>
</div>
<h3>Products</h3>
<ul>{{range .Order.Items}}<li>{{.Title}} x{{.Quantity}} - {{subtotal .}} Lei</li>{{end}}</ul>
{{if .HasInvoice}}<p>The invoice is attached as a PDF.</p>{{end}}
{{if not .Paid}}<p style="color:#666;font-size:14px;">You will pay on delivery.</p>{{end}}
` + layoutFoot))

	returnCreatedTmpl = template.Must(template.New("return_created").Funcs(funcs).Parse(layoutHead + `
<h2 style="color:#FF6B35;">Return request received</h2>
<p>We registered your return request <strong>#{{.Return.ID}}</strong> for order <strong>#{{.Return.OrderID}}</strong>.</p>
<p><strong>Reason:</strong> {{.Reason}}</p>
{{if .Return.Details}}<p><strong>Details:</strong> {{.Return.Details}}</p>{{end}}
<p>We will review it and get back to you shortly.</p>
` + layoutFoot))

	returnStatusTmpl = template.Must(template.New("return_status").Funcs(funcs).Parse(layoutHead + `
<h2 style="color:#FF6B35;">Return request update</h2>
<p>Your return request for order <strong>#{{.OrderID}}</strong> was <strong>{{.StatusLabel}}</strong>.</p>
{{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}
{{if .Approved}}<p>You will receive instructions for sending the product back soon.</p>{{end}}
` + layoutFoot))

	returnRefundedTmpl = template.Must(template.New("return_refunded").Funcs(funcs).Parse(layoutHead + `
<h2 style="color:#2e7d32;">Return completed</h2>
<p>Your return for order <strong>#{{.OrderID}}</strong> is complete and <strong>{{money .AmountCents}} Lei</strong> has been refunded to your card.</p>
<p>Refund reference: {{.RefundID}}</p>
<p>Depending on your bank, the money shows up within 5-10 business days.</p>
` + layoutFoot))
)

// OrderConfirmation builds the confirmation mail for a cash order (Paid false)
// or a confirmed card payment. A non-empty invoice is attached.
func OrderConfirmation(to, name string, order *domain.Order, paid bool, invoice []byte) (Message, error) {
	html, err := render(orderConfirmationTmpl, map[string]any{
		"Name":       name,
		"Order":      order,
		"Paid":       paid,
		"HasInvoice": len(invoice) > 0,
	})
	if err != nil {
		return Message{}, err
	}

	subject := fmt.Sprintf("Order confirmation #%d - %s", order.ID, brand)
	if paid {
		subject = fmt.Sprintf("Payment confirmation & invoice #%d - %s", order.ID, brand)
	}
	msg := Message{To: to, Subject: subject, HTML: html}
	if len(invoice) > 0 {
		msg.Attachments = []Attachment{{
			Filename:    fmt.Sprintf("Invoice_%d.pdf", order.ID),
			ContentType: "application/pdf",
			Data:        invoice,
		}}
	}
	return msg, nil
}

func ReturnCreated(to string, ret *domain.Return) (Message, error) {
	html, err := render(returnCreatedTmpl, map[string]any{
		"Return": ret,
		"Reason": ret.Reason.Label(),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Return request confirmation - Order #%d", ret.OrderID),
		HTML:    html,
	}, nil
}

func ReturnStatusChanged(to string, orderID int64, status domain.ReturnStatus, notes string) (Message, error) {
	html, err := render(returnStatusTmpl, map[string]any{
		"OrderID":     orderID,
		"StatusLabel": statusLabel(status),
		"Notes":       notes,
		"Approved":    status == domain.ReturnStatusApproved,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Return request update - Order #%d", orderID),
		HTML:    html,
	}, nil
}

func ReturnRefunded(to string, orderID, amountCents int64, refundID string) (Message, error) {
	html, err := render(returnRefundedTmpl, map[string]any{
		"OrderID":     orderID,
		"AmountCents": amountCents,
		"RefundID":    refundID,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Return completed - Order #%d", orderID),
		HTML:    html,
	}, nil
}

func statusLabel(s domain.ReturnStatus) string {
	switch s {
	case domain.ReturnStatusApproved:
		return "approved"
	case domain.ReturnStatusRejected:
		return "rejected"
	case domain.ReturnStatusCompleted:
		return "completed"
	default:
		return "put back on hold"
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
