// Package annotation models the shapes drawn over before/after recordings.
//
// Coordinates are normalized to the video frame (0..1) so annotations stay
// anchored regardless of the player size. RenderRect computes where a frame
// lands inside its container under object-fit: contain, and ToPixel /
// ToNormalized convert between the two spaces. VisibleAt applies each
// annotation's time window.
package annotation
