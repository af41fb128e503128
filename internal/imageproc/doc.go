// Package imageproc implements the image pipeline: raw buffer ingest with
// rowstride handling, format sniffing for animated images, a capped GIF
// animation decoder, and aspect-preserving downscale with alpha
// premultiplication.
//
// Grounded on original_source/cosmic-notifications-util/src/
// notification_image.rs and animated_image.rs. The Rust original leans on
// fast_image_resize's Lanczos3 convolution; this port uses
// golang.org/x/image/draw's CatmullRom convolutional scaler, the closest
// high-quality kernel the Go ecosystem's canonical imaging extension
// offers (no equivalent library existed in the teacher's own stack, so
// this is the one concern in the port built directly against a
// pack-external but ecosystem-standard library — see DESIGN.md).
package imageproc
