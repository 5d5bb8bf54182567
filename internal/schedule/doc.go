// Package schedule parses cron expressions and runs functions on a cron schedule.
//
// The bot uses it to start playback automatically: Every fires a callback on
// each tick of a cron expression until its context is cancelled.
package schedule
