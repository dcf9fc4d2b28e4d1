// Package reply holds the fixed texts the agent speaks and the pure
// formatters that turn order and product records into user-facing replies.
package reply

import (
	"fmt"
	"net/url"
	"strings"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

const (
	Welcome = "Welcome, I am the Sierra Outfitters agent. You can ask about the status of an order, product recommendations, or potential promotions. What would you like to request?"

	Clarify = "I'm not quite sure what you would like me to help with. You can ask about the status of an order, product recommendations, or potential promotions. What would you like to request?"

	Fallback = "I apologize, but something went wrong on my side. Let's try again. What would you like to know about?"

	AskOrderDetails = "To check your order status, I'll need your order number and email address. Can you please provide this information?"

	OrderServiceDown = "I'm having trouble reaching our order system right now. Please try again later. Is there anything else I can help you with?"

	AskProductDetails = "I can help you find products. What specific items or categories are you interested in?"

	NoProductMatch = "I couldn't find any products matching your criteria. Could you please provide more details about what you're looking for? For example, what type of activity, features, or categories are important to you?"

	CatalogUnavailable = "I'm having trouble accessing our product information right now. Could you please try again later?"

	ProductReplyFailed = "I found some products that might interest you, but I'm having trouble retrieving the details right now. Can you please try again?"

	AnythingElse = "Can I help you with anything else?"
)

const trackingBaseURL = "https://tools.usps.com/go/TrackConfirmAction"

func AskOrderNumber(email string) string {
	return fmt.Sprintf("I have your email address (%s), but I still need your order number (starts with #W). Could you please provide it?", email)
}

func AskEmail(orderNumber string) string {
	return fmt.Sprintf("I have your order number (%s), but I still need the email address associated with this order. Could you please provide it?", orderNumber)
}

func OrderNotFound(orderNumber, email string) string {
	return fmt.Sprintf("Sorry, I couldn't find an order with number %s for email %s. Please double check both and send them again.", orderNumber, email)
}

// StatusText converts an order status to a sentence.
func StatusText(status contractx.OrderStatus) string {
	switch contractx.OrderStatus(strings.ToLower(string(status))) {
	case contractx.OrderDelivered:
		return "The order has been delivered"
	case contractx.OrderInTransit:
		return "The order is on its way"
	case contractx.OrderFulfilled:
		return "The order has been processed and is ready for shipping"
	case contractx.OrderError:
		return "There was an issue with the order"
	default:
		return fmt.Sprintf("The order status is: %s", status)
	}
}

// TrackingURL returns the carrier tracking link, or "" without a tracking number.
func TrackingURL(trackingNumber string) string {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return ""
	}
	return trackingBaseURL + "?tLabels=" + url.QueryEscape(trackingNumber)
}

// OrderDetails renders the order record block.
func OrderDetails(o contractx.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order: %s\n", o.OrderNumber)
	fmt.Fprintf(&b, "Customer: %s (%s)\n", o.CustomerName, o.Email)
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(o.Status)))
	fmt.Fprintf(&b, "Products Ordered: %s\n", strings.Join(o.ProductsOrdered, ", "))
	if link := TrackingURL(o.TrackingNumber); link != "" {
		fmt.Fprintf(&b, "Tracking Number: %s\n", o.TrackingNumber)
		fmt.Fprintf(&b, "Tracking Link: %s", link)
	} else {
		b.WriteString("Tracking Info: No tracking number available")
	}
	return b.String()
}

// OrderSummary is the full reply for a successful order lookup.
func OrderSummary(o contractx.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's the information for your order %s.", o.OrderNumber)
	if strings.TrimSpace(o.TrackingNumber) != "" {
		fmt.Fprintf(&b, " Your package is being tracked with number %s.", o.TrackingNumber)
	}
	fmt.Fprintf(&b, " %s.\n\n", StatusText(o.Status))
	b.WriteString(OrderDetails(o))
	b.WriteString("\n\nEnjoy your outdoor apparel! 🌄\n\n")
	b.WriteString(AnythingElse)
	return b.String()
}
