// Package ui is the typed document model behind panel screens: forms made of
// pages, field groups and fields, and tabular lists with a toolbar and
// columns. A document is parsed from the inbound envelope, mutated once by
// endpoint logic and encoded back into an envelope.
package ui
