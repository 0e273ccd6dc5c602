package model

// Message is one rendered message for one address.
type Message struct {
	Channel      Channel
	Address      string
	TemplateName string
	BodyValues   []string
	// MediaURL is optional header media (WhatsApp) or a link passed to the template (email).
	MediaURL string
	// Subject is used by channels that carry one.
	Subject string
	// LanguageCode overrides the provider's default template language.
	LanguageCode string
	// SenderID overrides the SMS sender id.
	SenderID string
}

// DeliveryResult is what a delivery client reports for a single send.
type DeliveryResult struct {
	OK bool
	// ProviderID is the provider's message identifier when available.
	ProviderID string
	// Err explains a failed send. It is nil when OK is true.
	Err error
}

// Delivered builds a successful result.
func Delivered(providerID string) DeliveryResult {
	return DeliveryResult{OK: true, ProviderID: providerID}
}

// Undelivered builds a failed result.
func Undelivered(err error) DeliveryResult {
	return DeliveryResult{Err: err}
}
