// Package media models the time sources the playback controller drives.
//
// Track abstracts a platform media element (a video or narration audio
// player). SimTrack is a clock-driven implementation used by the headless
// player server and by tests; it reproduces the quirks the controller must
// tolerate, such as rate resets on play and rejected play requests.
// Locator helpers convert between filesystem paths and the local-video://
// scheme the UI uses to address recordings.
package media
