// Package sanitize implements the content-sanitization subsystem: an HTML
// whitelist cleaner, a multi-pass plain-text stripper, a
// scheme-validating href extractor, a literal-markup detector and a
// character-wise markup parser producing styled text segments.
//
// Grounded on original_source/cosmic-notifications-util/src/sanitizer.rs
// and markup_parser.rs, reimplemented with golang.org/x/net/html for tree
// cleaning in place of the Rust ammonia crate (the pack carries no Go
// HTML-sanitizer library, so the whitelist walk below hand-implements
// ammonia's allow-list semantics over x/net/html's tokenizer).
package sanitize
