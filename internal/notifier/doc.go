// Package notifier renders newly observed products as chat messages and
// delivers them through the transport adapter.
//
// Each product becomes one message: an HTML card with the product name,
// price, a shortened description and a footer. When the product carries an
// image and the adapter can post photos, the card is sent as the photo
// caption; otherwise it is sent as plain text.
//
// The notifier does not pace consecutive deliveries. The check cycle owns
// pacing so that a burst of new products is spread out evenly.
package notifier
