package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sjawhar/roomline/internal/order"
)

type confirmationText struct {
	GuestSubject string
	StaffSubject string
	Greeting     string
	Room         string
	Reference    string
	Timing       string
	Instructions string
	Total        string
	Closing      string
}

var confirmationTexts = map[string]confirmationText{
	"en": {
		GuestSubject: "Your order %s is confirmed",
		StaffSubject: "New order %s for room %s",
		Greeting:     "Thank you, we have received your order.",
		Room:         "Room",
		Reference:    "Order reference",
		Timing:       "Delivery",
		Instructions: "Special instructions",
		Total:        "Total",
		Closing:      "We will keep you updated as your order progresses.",
	},
	"vi": {
		GuestSubject: "Đơn hàng %s của quý khách đã được xác nhận",
		StaffSubject: "Đơn hàng mới %s cho phòng %s",
		Greeting:     "Cảm ơn quý khách, chúng tôi đã nhận được đơn hàng.",
		Room:         "Phòng",
		Reference:    "Mã đơn hàng",
		Timing:       "Thời gian giao",
		Instructions: "Yêu cầu đặc biệt",
		Total:        "Tổng cộng",
		Closing:      "Chúng tôi sẽ cập nhật tiến độ đơn hàng cho quý khách.",
	},
}

func textsFor(language string) confirmationText {
	base, _, _ := strings.Cut(strings.ToLower(language), "-")
	if t, ok := confirmationTexts[base]; ok {
		return t
	}
	return confirmationTexts["en"]
}

// OrderMarkdown renders the confirmation body for o.
func OrderMarkdown(o order.Order, language string) string {
	t := textsFor(language)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", t.Greeting)
	fmt.Fprintf(&b, "- **%s:** %s\n", t.Reference, o.Reference)
	fmt.Fprintf(&b, "- **%s:** %s\n", t.Room, o.RoomNumber)
	fmt.Fprintf(&b, "- **%s:** %s\n\n", t.Timing, o.DeliveryTiming)

	b.WriteString("| Item | Qty | Price |\n|---|---:|---:|\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", strings.ReplaceAll(it.Name, "|", "/"), it.Quantity, it.UnitPrice)
	}
	fmt.Fprintf(&b, "\n**%s:** %.2f\n", t.Total, o.TotalAmount)

	if o.SpecialInstructions != "" {
		fmt.Fprintf(&b, "\n**%s:** %s\n", t.Instructions, o.SpecialInstructions)
	}
	fmt.Fprintf(&b, "\n%s\n", t.Closing)
	return b.String()
}

// Dispatcher fans an order confirmation out to the guest (email), the staff
// mailing list and the staff Slack channel. Any notifier may be nil.
type Dispatcher struct {
	Email           Notifier
	Slack           Notifier
	StaffRecipients []string
	SlackChannel    string
	Logger          *slog.Logger
}

func (d *Dispatcher) OrderPlaced(ctx context.Context, o order.Order) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	if d.Email != nil && o.GuestEmail != "" {
		t := textsFor(o.Language)
		content := Content{Subject: fmt.Sprintf(t.GuestSubject, o.Reference), Markdown: OrderMarkdown(o, o.Language)}
		if err := d.Email.Notify(ctx, o.GuestEmail, content); err != nil {
			errs = append(errs, err)
		} else {
			logger.Info("notify: guest confirmation sent", "order_ref", o.Reference)
		}
	}

	staff := Content{
		Subject:  fmt.Sprintf(confirmationTexts["en"].StaffSubject, o.Reference, o.RoomNumber),
		Markdown: OrderMarkdown(o, "en"),
	}
	if d.Email != nil {
		for _, to := range d.StaffRecipients {
			if err := d.Email.Notify(ctx, to, staff); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if d.Slack != nil {
		if err := d.Slack.Notify(ctx, d.SlackChannel, staff); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether any channel is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && (d.Email != nil || d.Slack != nil)
}
